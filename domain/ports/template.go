package ports

// TemplateEngine renders user-supplied templates over instruction results.
type TemplateEngine interface {
	// Render executes raw with data as the root value.
	Render(raw []byte, data map[string]any) ([]byte, error)
}
