package loader

// loaderBackend defines the format-specific part of the Loader: which files it accepts and
// how an import of one of them is built.
type loaderBackend interface {
	// Extensions returns the lower-case file extensions (with dot) the backend imports.
	//
	// Returns:
	//   - []string: the extensions
	Extensions() []string

	// Begin prepares an import. Nothing is decoded until the import is ticked.
	//
	// Parameters:
	//   - name: the import name
	//   - baseDir: the directory or URL relative references resolve against
	//   - data: the container bytes
	//   - env: the loader configuration
	//
	// Returns:
	//   - *Import: the import handle
	Begin(name, baseDir string, data []byte, env importEnv) *Import
}
