package lookup

import (
	"sort"
)

// Address is the composite key of one bucket.
type Address struct {
	Session string
	Subject string
	Task    string
	Run     int
}

// WithRun returns a copy of the address pointing at another run.
func (a Address) WithRun(run int) Address {
	a.Run = run
	return a
}

type taskKey struct {
	session string
	subject string
	task    string
}

func (a Address) task() taskKey {
	return taskKey{session: a.Session, subject: a.Subject, task: a.Task}
}

// Index maps addresses to records. Leaf order is insertion order.
type Index[T any] struct {
	entries map[Address][]T
	runs    map[taskKey][]int
}

// NewIndex returns an empty index.
func NewIndex[T any]() *Index[T] {
	return &Index[T]{
		entries: make(map[Address][]T),
		runs:    make(map[taskKey][]int),
	}
}

// Add appends item to the bucket at addr.
func (x *Index[T]) Add(addr Address, item T) {
	if _, ok := x.entries[addr]; !ok {
		key := addr.task()
		x.runs[key] = insertSorted(x.runs[key], addr.Run)
	}
	x.entries[addr] = append(x.entries[addr], item)
}

// Get returns the bucket at addr.
func (x *Index[T]) Get(addr Address) ([]T, bool) {
	items, ok := x.entries[addr]
	return items, ok
}

// HasTask reports whether any run of (session, subject, task) is present.
func (x *Index[T]) HasTask(addr Address) bool {
	return len(x.runs[addr.task()]) > 0
}

// Runs returns the run keys of (session, subject, task) in ascending order.
func (x *Index[T]) Runs(addr Address) []int {
	runs := x.runs[addr.task()]
	out := make([]int, len(runs))
	copy(out, runs)
	return out
}

// Flatten concatenates every run bucket of (session, subject, task), runs
// ascending, each bucket in insertion order.
func (x *Index[T]) Flatten(addr Address) []T {
	var out []T
	for _, run := range x.runs[addr.task()] {
		out = append(out, x.entries[addr.WithRun(run)]...)
	}
	return out
}

// Len returns the number of records across all buckets.
func (x *Index[T]) Len() int {
	total := 0
	for _, items := range x.entries {
		total += len(items)
	}
	return total
}

// Sessions returns the distinct sessions, sorted.
func (x *Index[T]) Sessions() []string {
	return x.distinct(func(k taskKey) (string, bool) { return k.session, true })
}

// Subjects returns the distinct subjects of a session, sorted.
func (x *Index[T]) Subjects(session string) []string {
	return x.distinct(func(k taskKey) (string, bool) { return k.subject, k.session == session })
}

// Tasks returns the distinct tasks of a session/subject, sorted.
func (x *Index[T]) Tasks(session, subject string) []string {
	return x.distinct(func(k taskKey) (string, bool) {
		return k.task, k.session == session && k.subject == subject
	})
}

func (x *Index[T]) distinct(pick func(taskKey) (string, bool)) []string {
	seen := make(map[string]struct{})
	var out []string
	for key := range x.runs {
		value, ok := pick(key)
		if !ok {
			continue
		}
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	sort.Strings(out)
	return out
}

func insertSorted(runs []int, run int) []int {
	idx := sort.SearchInts(runs, run)
	if idx < len(runs) && runs[idx] == run {
		return runs
	}
	runs = append(runs, 0)
	copy(runs[idx+1:], runs[idx:])
	runs[idx] = run
	return runs
}
