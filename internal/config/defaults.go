package config

// applyDefaults fills in unset fields with their documented defaults.
func (c *Config) applyDefaults() {
	if c.Source.Root == "" {
		c.Source.Root = "."
	}
	if len(c.Source.IncludeExtensions) == 0 {
		c.Source.IncludeExtensions = []string{".md"}
	}
	if c.Source.Header == "" {
		c.Source.Header = "header.md"
	}
	if c.Source.Footer == "" {
		c.Source.Footer = "footer.md"
	}

	if c.Output.Directory == "" {
		c.Output.Directory = "./site"
	}
	if c.Output.Extension == "" {
		c.Output.Extension = ".html"
	}

	if c.Build.FailurePolicy == "" {
		c.Build.FailurePolicy = PolicyBestEffort
	}

	if c.Publish.Branch == "" {
		c.Publish.Branch = "pages"
	}

	if c.Watch.Debounce == "" {
		c.Watch.Debounce = "500ms"
	}
	if c.Watch.NATSSubject == "" {
		c.Watch.NATSSubject = "sitebuilder.builds"
	}
}
