package deps

// DataladRequirements lists the programs a datalad-managed dataset needs.
// datalad shells out to git and git-annex, so a datalad binary alone is not
// enough for unlock and save to work.
func DataladRequirements(dataladBinary string) []Requirement {
	return []Requirement{
		{
			Name:        "datalad",
			Command:     dataladBinary,
			Description: "Required to unlock and save dataset files",
		},
		{
			Name:        "git",
			Command:     "git",
			Description: "Used by datalad for version control",
		},
		{
			Name:        "git-annex",
			Command:     "git-annex",
			Description: "Used by datalad for annexed files",
		},
	}
}
