package convert

import "github.com/smazurov/ffpipe/internal/media"

func fromI420(dst *media.Frame, raw []byte, w, h int) {
	ySize := w * h
	cSize := len(dst.U)
	copy(dst.Y, raw[:ySize])
	copy(dst.U, raw[ySize:ySize+cSize])
	copy(dst.V, raw[ySize+cSize:])
}

func fromYV12(dst *media.Frame, raw []byte, w, h int) {
	ySize := w * h
	cSize := len(dst.U)
	copy(dst.Y, raw[:ySize])
	copy(dst.V, raw[ySize:ySize+cSize])
	copy(dst.U, raw[ySize+cSize:])
}

func fromNV12(dst *media.Frame, raw []byte, w, h int) {
	deinterleave(dst, raw, w, h, dst.U, dst.V)
}

func fromNV21(dst *media.Frame, raw []byte, w, h int) {
	deinterleave(dst, raw, w, h, dst.V, dst.U)
}

// deinterleave splits a semi-planar chroma plane into first and second.
func deinterleave(dst *media.Frame, raw []byte, w, h int, first, second []byte) {
	ySize := w * h
	copy(dst.Y, raw[:ySize])
	uv := raw[ySize:]
	for i := range first {
		first[i] = uv[2*i]
		second[i] = uv[2*i+1]
	}
}

// packed422 returns a converter for 4:2:2 layouts that store two pixels in
// four bytes. y0 is the offset of the first luma sample; u and v are the
// chroma offsets within the group. The second luma sample is at y0+2.
// Vertical chroma is averaged over row pairs.
func packed422(y0, u, v int) converter {
	return func(dst *media.Frame, raw []byte, w, h int) {
		halfW := dst.StrideUV
		rowBytes := halfW * 4

		for row := 0; row < h; row++ {
			src := raw[row*rowBytes : (row+1)*rowBytes]
			yRow := dst.Y[row*w : (row+1)*w]
			for x := 0; x < w; x++ {
				yRow[x] = src[(x/2)*4+y0+(x%2)*2]
			}
		}

		for cy := 0; cy < (h+1)/2; cy++ {
			top := cy * 2
			bottom := top + 1
			if bottom >= h {
				bottom = top
			}
			a := raw[top*rowBytes : (top+1)*rowBytes]
			b := raw[bottom*rowBytes : (bottom+1)*rowBytes]
			for cx := 0; cx < halfW; cx++ {
				i := cx * 4
				dst.U[cy*halfW+cx] = avg2(a[i+u], b[i+u])
				dst.V[cy*halfW+cx] = avg2(a[i+v], b[i+v])
			}
		}
	}
}

func avg2(a, b byte) byte {
	return byte((int(a) + int(b) + 1) >> 1)
}
