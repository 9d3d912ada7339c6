package ports

// ImageStore resolves backend image store names (e.g. "IOS", "QEMU") to local directories.
type ImageStore interface {
	// Dir returns the directory of the named store and whether it is configured.
	Dir(store string) (string, bool)
}

// ImageDirs is a static ImageStore.
type ImageDirs map[string]string

func (d ImageDirs) Dir(store string) (string, bool) {
	dir, ok := d[store]
	return dir, ok && dir != ""
}
