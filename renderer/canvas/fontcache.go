package canvasrenderer

import (
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/image/font/sfnt"
)

// faceCache 按路径缓存解析后的字体，供同一 Rasterizer 的所有调用共享。
// sfnt.Font 只读，配合各自的 sfnt.Buffer 可并发使用。文件大小或修改时间变化时重新读取。
type faceCache struct {
	mu      sync.Mutex
	entries map[string]cachedFaces
}

type cachedFaces struct {
	size  int64
	mod   time.Time
	faces []*sfnt.Font
}

func newFaceCache() *faceCache {
	return &faceCache{entries: map[string]cachedFaces{}}
}

// load 返回 path 中的全部字体；集合文件返回多个。
func (c *faceCache) load(path string) ([]*sfnt.Font, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("读取字体文件 %s 失败: %w", path, err)
	}
	c.mu.Lock()
	e, ok := c.entries[path]
	c.mu.Unlock()
	if ok && e.size == info.Size() && e.mod.Equal(info.ModTime()) {
		return e.faces, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取字体文件 %s 失败: %w", path, err)
	}
	faces, err := parseFaces(data, path)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.entries[path] = cachedFaces{size: info.Size(), mod: info.ModTime(), faces: faces}
	c.mu.Unlock()
	return faces, nil
}

// parseFaces 解析单个字体或字体集合。
func parseFaces(data []byte, source string) ([]*sfnt.Font, error) {
	f, err := sfnt.Parse(data)
	if err == nil {
		return []*sfnt.Font{f}, nil
	}
	coll, cerr := sfnt.ParseCollection(data)
	if cerr != nil {
		return nil, fmt.Errorf("解析字体 %s 失败: %w", source, err)
	}
	faces := make([]*sfnt.Font, 0, coll.NumFonts())
	for i := 0; i < coll.NumFonts(); i++ {
		f, err := coll.Font(i)
		if err != nil {
			return nil, fmt.Errorf("解析字体集合 %s 的第 %d 个字体失败: %w", source, i, err)
		}
		faces = append(faces, f)
	}
	return faces, nil
}
