// Package imagemeta extracts capture metadata from primary images.
package imagemeta

import (
	"fmt"
	"os"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"baucam/internal/timelapse"
)

// EXIFReader reads the device timestamp and EXIF tags of an image.
type EXIFReader struct{}

var _ timelapse.MetadataReader = EXIFReader{}

func NewEXIFReader() EXIFReader { return EXIFReader{} }

// Read decodes the EXIF block of the image at path. The timestamp is nil
// when the image carries none; tags are returned unfiltered.
func (EXIFReader) Read(path string) (*timelapse.ImageMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding EXIF: %w", err)
	}

	meta := &timelapse.ImageMetadata{Tags: make(map[string]string)}
	if tm, err := x.DateTime(); err == nil {
		meta.Taken = &tm
	}
	if err := x.Walk(tagCollector(meta.Tags)); err != nil {
		return nil, fmt.Errorf("walking EXIF tags: %w", err)
	}
	return meta, nil
}

// tagCollector implements exif.Walker, storing each tag's printable value.
type tagCollector map[string]string

func (c tagCollector) Walk(name exif.FieldName, tag *tiff.Tag) error {
	if tag.Format() == tiff.StringVal {
		if s, err := tag.StringVal(); err == nil {
			c[string(name)] = s
			return nil
		}
	}
	c[string(name)] = tag.String()
	return nil
}
