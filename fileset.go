package plinkbgen

import (
	"bufio"
	"fmt"
	"os"

	"github.com/carbocation/pfx"
)

// BEDMagic is the 3-byte magic prefix of the packed genotype matrix file.
var BEDMagic = []byte{0x6c, 0x1b, 0x01}

// OutputFileSet owns the five output resources of one encode pass: three text
// genotype-matrix files, the packed binary matrix, and the probabilistic
// file. All five share a configurable prefix. The probabilistic file is kept
// as a raw *os.File because its totals are back-patched by offset after the
// stream ends.
type OutputFileSet struct {
	Prefix string

	fam  *bufio.Writer
	bim  *bufio.Writer
	tped *bufio.Writer
	bed  *bufio.Writer
	bgen *os.File

	files []*os.File
}

// OpenOutputFileSet creates (truncating) the five output files under prefix
// and writes the packed-matrix magic. On any failure, files opened so far are
// closed and removed.
func OpenOutputFileSet(prefix string) (*OutputFileSet, error) {
	fs := &OutputFileSet{Prefix: prefix}

	buffered := []struct {
		suffix string
		dst    **bufio.Writer
	}{
		{".fam", &fs.fam},
		{".bim", &fs.bim},
		{".tped", &fs.tped},
		{".bed", &fs.bed},
	}

	for _, b := range buffered {
		f, err := os.Create(prefix + b.suffix)
		if err != nil {
			fs.discard()
			return nil, pfx.Err(fmt.Errorf("%w: %v", ErrResource, err))
		}
		fs.files = append(fs.files, f)
		*b.dst = bufio.NewWriter(f)
	}

	f, err := os.Create(prefix + ".bgen")
	if err != nil {
		fs.discard()
		return nil, pfx.Err(fmt.Errorf("%w: %v", ErrResource, err))
	}
	fs.files = append(fs.files, f)
	fs.bgen = f

	if _, err := fs.bed.Write(BEDMagic); err != nil {
		fs.discard()
		return nil, pfx.Err(fmt.Errorf("%w: %v", ErrResource, err))
	}

	return fs, nil
}

// Fam appends one line to the sample file.
func (fs *OutputFileSet) Fam(line string) error {
	return fs.writeLine(fs.fam, line)
}

// Bim appends one line to the variant file.
func (fs *OutputFileSet) Bim(line string) error {
	return fs.writeLine(fs.bim, line)
}

// Tped appends one line to the text genotype matrix.
func (fs *OutputFileSet) Tped(line string) error {
	return fs.writeLine(fs.tped, line)
}

// Bed exposes the packed-matrix writer.
func (fs *OutputFileSet) Bed(p []byte) error {
	if _, err := fs.bed.Write(p); err != nil {
		return pfx.Err(fmt.Errorf("%w: %v", ErrResource, err))
	}

	return nil
}

// BedWriter returns the buffered packed-matrix writer for streaming use.
func (fs *OutputFileSet) BedWriter() *bufio.Writer {
	return fs.bed
}

// BGEN appends to the probabilistic file.
func (fs *OutputFileSet) BGEN(p []byte) error {
	if _, err := fs.bgen.Write(p); err != nil {
		return pfx.Err(fmt.Errorf("%w: %v", ErrResource, err))
	}

	return nil
}

// BGENWriteAt overwrites previously written probabilistic-file bytes, used
// for the deferred totals.
func (fs *OutputFileSet) BGENWriteAt(p []byte, offset int64) error {
	if _, err := fs.bgen.WriteAt(p, offset); err != nil {
		return pfx.Err(fmt.Errorf("%w: %v", ErrResource, err))
	}

	return nil
}

func (fs *OutputFileSet) writeLine(w *bufio.Writer, line string) error {
	if _, err := w.WriteString(line); err != nil {
		return pfx.Err(fmt.Errorf("%w: %v", ErrResource, err))
	}
	if err := w.WriteByte('\n'); err != nil {
		return pfx.Err(fmt.Errorf("%w: %v", ErrResource, err))
	}

	return nil
}

// Close flushes the buffered writers and closes all five files. It is safe
// to call on every exit path; the first error is returned but every file is
// still closed.
func (fs *OutputFileSet) Close() error {
	if fs.files == nil {
		return nil
	}

	var firstErr error

	for _, w := range []*bufio.Writer{fs.fam, fs.bim, fs.tped, fs.bed} {
		if w == nil {
			continue
		}
		if err := w.Flush(); err != nil && firstErr == nil {
			firstErr = pfx.Err(fmt.Errorf("%w: %v", ErrResource, err))
		}
	}

	for _, f := range fs.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = pfx.Err(fmt.Errorf("%w: %v", ErrResource, err))
		}
	}
	fs.files = nil

	return firstErr
}

// discard closes and removes whatever was opened so far. Only used when
// construction fails partway.
func (fs *OutputFileSet) discard() {
	for _, f := range fs.files {
		name := f.Name()
		f.Close()
		os.Remove(name)
	}
	fs.files = nil
}
