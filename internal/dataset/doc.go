// Package dataset wraps the version-control layer around a dataset.
//
// Every tracked file must be unlocked before it is modified, and changes are
// committed once at the end of a run. The datalad manager shells out to the
// datalad CLI; the plain manager is for ordinary directory trees and does
// nothing.
package dataset
