package frame

import (
	"image"
	"sync"
)

// bufferPool переиспользует *image.RGBA одного размера между кадрами,
// чтобы снимки кадров не нагружали GC в пакетном режиме.
type bufferPool struct {
	pools map[image.Rectangle]*sync.Pool
	mu    sync.RWMutex
}

var globalPool = &bufferPool{
	pools: make(map[image.Rectangle]*sync.Pool),
}

func (p *bufferPool) get(rect image.Rectangle) *image.RGBA {
	p.mu.RLock()
	pool, exists := p.pools[rect]
	p.mu.RUnlock()

	if !exists {
		p.mu.Lock()
		// Double check
		pool, exists = p.pools[rect]
		if !exists {
			pool = &sync.Pool{
				New: func() interface{} {
					return image.NewRGBA(rect)
				},
			}
			p.pools[rect] = pool
		}
		p.mu.Unlock()
	}

	return pool.Get().(*image.RGBA)
}

func (p *bufferPool) put(img *image.RGBA) {
	if img == nil {
		return
	}
	p.mu.RLock()
	pool, exists := p.pools[img.Rect]
	p.mu.RUnlock()

	if exists {
		pool.Put(img)
	}
}

// Snapshot копирует кадр в буфер из пула. Снимок не зависит от исходного кадра:
// последующие SetPixel на оригинале его не меняют.
func Snapshot(f Frame) *RGBAFrame {
	w, h := f.Width(), f.Height()
	dst := globalPool.get(image.Rect(0, 0, w, h))

	if src, ok := f.(*RGBAFrame); ok {
		for y := 0; y < h; y++ {
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+w*4], src.img.Pix[src.img.PixOffset(0, y):])
		}
		return &RGBAFrame{img: dst}
	}

	out := &RGBAFrame{img: dst}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.SetPixel(x, y, f.Pixel(x, y))
		}
	}
	return out
}

// Release возвращает буфер снимка в пул. После вызова кадр использовать нельзя.
func Release(f *RGBAFrame) {
	if f == nil {
		return
	}
	globalPool.put(f.img)
	f.img = nil
}
