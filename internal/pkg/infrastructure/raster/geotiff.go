package raster

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
)

// TIFF field types and the tags used here. Raster data is written as
// pixel-interleaved little-endian float32 in a single strip, georeferenced
// with the GeoTIFF 1.1 ModelPixelScale/ModelTiepoint/GeoKeyDirectory tags.
const (
	typeASCII  = 2
	typeShort  = 3
	typeLong   = 4
	typeDouble = 12

	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagPhotometric     = 262
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagPlanarConfig    = 284
	tagSampleFormat    = 339
	tagModelPixelScale = 33550
	tagModelTiepoint   = 33922
	tagGeoKeyDirectory = 34735
	tagGDALNoData      = 42113

	geoKeyModelType      = 1024
	geoKeyRasterType     = 1025
	geoKeyGeographicType = 2048
	geoKeyProjectedCS    = 3072

	sampleFormatIEEEFP = 3
)

type TIFFOptions struct {
	// NoData replaces NaN cells in the output and is recorded in the
	// GDAL_NODATA tag.
	NoData float64
}

type tiffTag struct {
	id      uint16
	typ     uint16
	count   uint32
	payload []byte
	offset  uint32
}

// WriteGeoTIFF serializes a stack as a multi-band GeoTIFF.
func WriteGeoTIFF(w io.Writer, stack *Stack, opts *TIFFOptions) error {
	grid := stack.Grid
	if err := grid.Valid(); err != nil {
		return err
	}
	if len(stack.Bands) == 0 {
		return errors.New("stack has no bands to write")
	}
	for i, band := range stack.Bands {
		if len(band) != grid.Height || len(band[0]) != grid.Width {
			return fmt.Errorf("band %d shape %dx%d does not match grid %dx%d",
				i, len(band), len(band[0]), grid.Height, grid.Width)
		}
	}

	nodata := -9999.0
	if opts != nil {
		nodata = opts.NoData
	}

	bands := uint16(len(stack.Bands))

	bits := make([]uint16, bands)
	formats := make([]uint16, bands)
	for i := range bits {
		bits[i] = 32
		formats[i] = sampleFormatIEEEFP
	}

	modelType := uint16(1)
	csKey := uint16(geoKeyProjectedCS)
	if grid.Geographic() {
		modelType = 2
		csKey = geoKeyGeographicType
	}
	geoKeys := []uint16{
		1, 1, 0, 3,
		geoKeyModelType, 0, 1, modelType,
		geoKeyRasterType, 0, 1, 1, // PixelIsArea
		csKey, 0, 1, uint16(grid.EPSG),
	}

	nodataASCII := append([]byte(strconv.FormatFloat(nodata, 'f', -1, 64)), 0)

	tags := []tiffTag{
		{id: tagImageWidth, typ: typeLong, count: 1, payload: longs(uint32(grid.Width))},
		{id: tagImageLength, typ: typeLong, count: 1, payload: longs(uint32(grid.Height))},
		{id: tagBitsPerSample, typ: typeShort, count: uint32(bands), payload: shorts(bits...)},
		{id: tagCompression, typ: typeShort, count: 1, payload: shorts(1)},
		{id: tagPhotometric, typ: typeShort, count: 1, payload: shorts(1)},
		{id: tagStripOffsets, typ: typeLong, count: 1}, // filled in below
		{id: tagSamplesPerPixel, typ: typeShort, count: 1, payload: shorts(bands)},
		{id: tagRowsPerStrip, typ: typeLong, count: 1, payload: longs(uint32(grid.Height))},
		{id: tagStripByteCounts, typ: typeLong, count: 1}, // filled in below
		{id: tagPlanarConfig, typ: typeShort, count: 1, payload: shorts(1)},
		{id: tagSampleFormat, typ: typeShort, count: uint32(bands), payload: shorts(formats...)},
		{id: tagModelPixelScale, typ: typeDouble, count: 3, payload: doubles(grid.PixelWidth, grid.PixelHeight, 0)},
		{id: tagModelTiepoint, typ: typeDouble, count: 6, payload: doubles(0, 0, 0, grid.OriginX, grid.OriginY, 0)},
		{id: tagGeoKeyDirectory, typ: typeShort, count: uint32(len(geoKeys)), payload: shorts(geoKeys...)},
		{id: tagGDALNoData, typ: typeASCII, count: uint32(len(nodataASCII)), payload: nodataASCII},
	}

	// lay out: header, IFD, external tag payloads, pixel data
	ifdStart := uint32(8)
	extOffset := ifdStart + 2 + uint32(len(tags))*12 + 4
	for i := range tags {
		if len(tags[i].payload) > 4 {
			tags[i].offset = extOffset
			extOffset += uint32(len(tags[i].payload))
			if extOffset%2 == 1 {
				extOffset++
			}
		}
	}
	dataOffset := extOffset
	byteCount := uint32(grid.Width) * uint32(grid.Height) * uint32(bands) * 4

	for i := range tags {
		switch tags[i].id {
		case tagStripOffsets:
			tags[i].payload = longs(dataOffset)
		case tagStripByteCounts:
			tags[i].payload = longs(byteCount)
		}
	}

	out := bufio.NewWriter(w)

	// header
	out.Write([]byte{'I', 'I', 42, 0})
	writeU32(out, ifdStart)

	// IFD
	writeU16(out, uint16(len(tags)))
	for _, t := range tags {
		writeU16(out, t.id)
		writeU16(out, t.typ)
		writeU32(out, t.count)
		if len(t.payload) > 4 {
			writeU32(out, t.offset)
		} else {
			inline := [4]byte{}
			copy(inline[:], t.payload)
			out.Write(inline[:])
		}
	}
	writeU32(out, 0) // no next IFD

	// external payloads
	pos := ifdStart + 2 + uint32(len(tags))*12 + 4
	for _, t := range tags {
		if len(t.payload) <= 4 {
			continue
		}
		out.Write(t.payload)
		pos += uint32(len(t.payload))
		if pos%2 == 1 {
			out.WriteByte(0)
			pos++
		}
	}

	// pixel data, band-interleaved by pixel
	rowBuf := make([]byte, grid.Width*int(bands)*4)
	for row := 0; row < grid.Height; row++ {
		i := 0
		for col := 0; col < grid.Width; col++ {
			for b := 0; b < int(bands); b++ {
				v := stack.Bands[b][row][col]
				if math.IsNaN(v) {
					v = nodata
				}
				binary.LittleEndian.PutUint32(rowBuf[i:], math.Float32bits(float32(v)))
				i += 4
			}
		}
		if _, err := out.Write(rowBuf); err != nil {
			return err
		}
	}

	return out.Flush()
}

func shorts(vals ...uint16) []byte {
	b := make([]byte, len(vals)*2)
	for i, v := range vals {
		binary.LittleEndian.PutUint16(b[i*2:], v)
	}
	return b
}

func longs(vals ...uint32) []byte {
	b := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(b[i*4:], v)
	}
	return b
}

func doubles(vals ...float64) []byte {
	b := make([]byte, len(vals)*8)
	for i, v := range vals {
		binary.LittleEndian.PutUint64(b[i*8:], math.Float64bits(v))
	}
	return b
}

func writeU16(w *bufio.Writer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.Write(b[:])
}

func writeU32(w *bufio.Writer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.Write(b[:])
}
