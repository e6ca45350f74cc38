// Package cache provides the bounded LRU cache shared by the kernel
// compiler and the mask library.
//
//	c := cache.New[string, *shader.Module](64)
//	mod, err := c.GetOrCreate(key, func() (*shader.Module, error) {
//		return shader.Compile(src)
//	})
//
// Failed creations are not cached. The cache is safe for concurrent use
// and must not be copied after creation.
package cache
