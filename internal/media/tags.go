package media

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bogem/id3v2/v2"
)

const coverDescription = "Cover"

// Tagger edits ID3v2 title and cover frames in place.
type Tagger struct{}

func NewTagger() *Tagger { return &Tagger{} }

// open parses the existing tag, or opens it without parsing frames when they
// are unreadable.
func open(path string) (*id3v2.Tag, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err == nil {
		return tag, nil
	}
	tag, err = id3v2.Open(path, id3v2.Options{Parse: false})
	if err != nil {
		return nil, fmt.Errorf("open tag %s: %w", path, err)
	}
	return tag, nil
}

// edit applies fn to the file's tag and saves it as ID3v2.4. A tag container
// id3v2 cannot open at all (ID3v2.2, broken header) is dropped and fn starts
// from an empty tag.
func edit(path string, fn func(*id3v2.Tag)) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	tag, err := open(path)
	if err != nil {
		return rewriteEmpty(path, fn)
	}
	defer tag.Close()

	tag.SetVersion(4)
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	fn(tag)
	if err := tag.Save(); err != nil {
		return fmt.Errorf("save tag %s: %w", path, err)
	}
	return nil
}

func rewriteEmpty(path string, fn func(*id3v2.Tag)) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	tag := id3v2.NewEmptyTag()
	tag.SetVersion(4)
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	fn(tag)

	var buf bytes.Buffer
	if _, err := tag.WriteTo(&buf); err != nil {
		return fmt.Errorf("encode tag %s: %w", path, err)
	}
	buf.Write(data[tagRegion(data):])

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tag*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write tag %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// tagRegion is the length of a leading ID3v2 block: 10 header bytes, the
// syncsafe body size and an optional 10 byte footer. A size running past the
// end of data only strips the header.
func tagRegion(data []byte) int {
	if len(data) < 10 || !bytes.HasPrefix(data, []byte("ID3")) {
		return 0
	}
	size := int(data[6]&0x7f)<<21 | int(data[7]&0x7f)<<14 | int(data[8]&0x7f)<<7 | int(data[9]&0x7f)
	n := 10 + size
	if data[5]&0x10 != 0 {
		n += 10
	}
	if n > len(data) {
		return 10
	}
	return n
}

// SetTitle replaces every title frame with a single one holding title.
func (Tagger) SetTitle(path, title string) error {
	return edit(path, func(tag *id3v2.Tag) {
		tag.DeleteFrames(tag.CommonID("Title"))
		tag.SetTitle(title)
	})
}

// SetCover drops all embedded pictures and attaches the jpeg at imagePath as
// the front cover.
func (Tagger) SetCover(path, imagePath string) error {
	img, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("read cover %s: %w", imagePath, err)
	}
	return edit(path, func(tag *id3v2.Tag) {
		tag.DeleteFrames(tag.CommonID("Attached picture"))
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    "image/jpeg",
			PictureType: id3v2.PTFrontCover,
			Description: coverDescription,
			Picture:     img,
		})
	})
}

// TagInfo is what the bot reports about a stored file.
type TagInfo struct {
	Title      string
	TitleCount int
	Covers     int
}

// Info reports an unreadable tag container as empty.
func (Tagger) Info(path string) (TagInfo, error) {
	if _, err := os.Stat(path); err != nil {
		return TagInfo{}, err
	}
	tag, err := open(path)
	if err != nil {
		return TagInfo{}, nil
	}
	defer tag.Close()
	return TagInfo{
		Title:      tag.Title(),
		TitleCount: len(tag.GetFrames(tag.CommonID("Title"))),
		Covers:     len(tag.GetFrames(tag.CommonID("Attached picture"))),
	}, nil
}
