package convert

import "github.com/smazurov/ffpipe/internal/media"

// BT.601 limited range, fixed point with 8 fractional bits.
func rgbToY(r, g, b int) byte {
	return byte((66*r + 129*g + 25*b + 0x1080) >> 8)
}

func rgbToU(r, g, b int) byte {
	return byte((112*b - 74*g - 38*r + 0x8080) >> 8)
}

func rgbToV(r, g, b int) byte {
	return byte((112*r - 94*g - 18*b + 0x8080) >> 8)
}

// packedRGB returns a converter for packed RGB layouts with bpp bytes per
// pixel and the given channel offsets. Chroma is computed from the average
// of each 2x2 block, clamped at the right and bottom edges.
func packedRGB(bpp, r, g, b int) converter {
	return func(dst *media.Frame, raw []byte, w, h int) {
		stride := w * bpp

		for row := 0; row < h; row++ {
			src := raw[row*stride : (row+1)*stride]
			yRow := dst.Y[row*w : (row+1)*w]
			for x := 0; x < w; x++ {
				p := src[x*bpp:]
				yRow[x] = rgbToY(int(p[r]), int(p[g]), int(p[b]))
			}
		}

		halfW := dst.StrideUV
		for cy := 0; cy < (h+1)/2; cy++ {
			y0 := cy * 2
			y1 := min(y0+1, h-1)
			for cx := 0; cx < halfW; cx++ {
				x0 := cx * 2
				x1 := min(x0+1, w-1)

				var sr, sg, sb int
				for _, off := range [4]int{
					y0*stride + x0*bpp,
					y0*stride + x1*bpp,
					y1*stride + x0*bpp,
					y1*stride + x1*bpp,
				} {
					sr += int(raw[off+r])
					sg += int(raw[off+g])
					sb += int(raw[off+b])
				}
				ar, ag, ab := (sr+2)>>2, (sg+2)>>2, (sb+2)>>2

				dst.U[cy*halfW+cx] = rgbToU(ar, ag, ab)
				dst.V[cy*halfW+cx] = rgbToV(ar, ag, ab)
			}
		}
	}
}
