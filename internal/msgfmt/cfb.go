// Package msgfmt reads the compound file binary (CFB/OLE2) container that
// backs the .msg email format, and extracts the handful of MAPI streams the
// pipeline needs (body, HTML body, and attachments). No CFB/OLE container
// library appears anywhere in the example pack -- the one OLE-adjacent
// dependency seen (go-ole, in a manifest) is a Windows COM automation
// bridge, not a container parser, so this is a deliberate, narrow stdlib
// implementation of just enough of MS-CFB to walk the directory tree.
package msgfmt

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	sectorSize       = 512
	headerSize       = 512
	direntSize       = 128
	freeSect         = 0xFFFFFFFF
	endOfChain       = 0xFFFFFFFE
	fatSect          = 0xFFFFFFFD
	difSect          = 0xFFFFFFFC
	miniStreamCutoff = 4096
	miniSectorSize   = 64
)

var magic = [8]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// direntType values.
const (
	direntEmpty       = 0
	direntStorage     = 1
	direntStream      = 2
	direntRootStorage = 5
)

// noStream marks an unset sibling/child index in a directory entry.
const noStream = 0xFFFFFFFF

// Entry is one directory entry in the compound file tree.
type Entry struct {
	Name       string
	Type       byte
	StartSect  uint32
	StreamSize uint64
	Children   []*Entry

	left, right, child uint32
}

// IsStream reports whether the entry holds stream data (vs. a storage/folder).
func (e *Entry) IsStream() bool { return e.Type == direntStream }

// Reader parses a compound file and exposes its directory tree and stream data.
type Reader struct {
	data       []byte
	sectorSize int
	fat        []uint32
	miniFat    []uint32
	miniStream []byte
	root       *Entry
}

// Open parses raw as a compound file binary container.
func Open(raw []byte) (*Reader, error) {
	if len(raw) < headerSize {
		return nil, errors.New("msgfmt: file too small to be a compound file")
	}
	var sig [8]byte
	copy(sig[:], raw[:8])
	if sig != magic {
		return nil, errors.New("msgfmt: missing compound file signature")
	}

	sectorShift := binary.LittleEndian.Uint16(raw[30:32])
	secSize := 1 << sectorShift

	numFATSectors := binary.LittleEndian.Uint32(raw[44:48])
	firstDirSect := binary.LittleEndian.Uint32(raw[48:52])
	firstMiniFATSect := binary.LittleEndian.Uint32(raw[60:64])
	firstDIFATSect := binary.LittleEndian.Uint32(raw[68:72])

	r := &Reader{data: raw, sectorSize: secSize}

	difatSectors, err := r.readDIFAT(numFATSectors, firstDIFATSect)
	if err != nil {
		return nil, err
	}

	r.fat, err = r.readFAT(difatSectors)
	if err != nil {
		return nil, err
	}

	dirEntries, err := r.readChain(firstDirSect, r.fat)
	if err != nil {
		return nil, fmt.Errorf("msgfmt: read directory chain: %w", err)
	}
	flat, err := r.parseDirentStream(dirEntries)
	if err != nil {
		return nil, err
	}
	if len(flat) == 0 {
		return nil, errors.New("msgfmt: empty directory stream")
	}
	r.root = flat[0]
	linkTree(flat, 0)

	if firstMiniFATSect != endOfChain && firstMiniFATSect != freeSect {
		miniFatBytes, err := r.readChain(firstMiniFATSect, r.fat)
		if err != nil {
			return nil, fmt.Errorf("msgfmt: read mini fat chain: %w", err)
		}
		r.miniFat = bytesToUint32s(miniFatBytes)

		if r.root.StartSect != endOfChain {
			r.miniStream, err = r.readChain(r.root.StartSect, r.fat)
			if err != nil {
				return nil, fmt.Errorf("msgfmt: read mini stream: %w", err)
			}
		}
	}

	return r, nil
}

// Root returns the root storage entry.
func (r *Reader) Root() *Entry { return r.root }

// ReadStream returns the full contents of a stream entry.
func (r *Reader) ReadStream(e *Entry) ([]byte, error) {
	if !e.IsStream() {
		return nil, fmt.Errorf("msgfmt: %q is not a stream", e.Name)
	}
	if e.StreamSize < miniStreamCutoff {
		return r.readMiniChain(e.StartSect, e.StreamSize)
	}
	data, err := r.readChain(e.StartSect, r.fat)
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) > e.StreamSize {
		data = data[:e.StreamSize]
	}
	return data, nil
}

func (r *Reader) sectorOffset(sect uint32) int {
	return headerSize + int(sect)*r.sectorSize
}

func (r *Reader) readDIFAT(numFATSectors, firstDIFATSect uint32) ([]uint32, error) {
	var sects []uint32
	for i := 0; i < 109; i++ {
		off := 76 + i*4
		v := binary.LittleEndian.Uint32(r.data[off : off+4])
		if v == freeSect {
			break
		}
		sects = append(sects, v)
	}

	next := firstDIFATSect
	for next != endOfChain && next != freeSect {
		off := r.sectorOffset(next)
		if off+r.sectorSize > len(r.data) {
			return nil, errors.New("msgfmt: DIFAT sector out of range")
		}
		sector := r.data[off : off+r.sectorSize]
		entries := (r.sectorSize / 4) - 1
		for i := 0; i < entries; i++ {
			v := binary.LittleEndian.Uint32(sector[i*4 : i*4+4])
			if v != freeSect {
				sects = append(sects, v)
			}
		}
		next = binary.LittleEndian.Uint32(sector[entries*4 : entries*4+4])
	}
	return sects, nil
}

func (r *Reader) readFAT(fatSectors []uint32) ([]uint32, error) {
	var fat []uint32
	for _, s := range fatSectors {
		off := r.sectorOffset(s)
		if off+r.sectorSize > len(r.data) {
			return nil, errors.New("msgfmt: FAT sector out of range")
		}
		sector := r.data[off : off+r.sectorSize]
		fat = append(fat, bytesToUint32s(sector)...)
	}
	return fat, nil
}

func (r *Reader) readChain(start uint32, fat []uint32) ([]byte, error) {
	var out []byte
	sect := start
	seen := map[uint32]bool{}
	for sect != endOfChain && sect != freeSect {
		if seen[sect] {
			return nil, errors.New("msgfmt: cyclic sector chain")
		}
		seen[sect] = true

		off := r.sectorOffset(sect)
		if off+r.sectorSize > len(r.data) {
			return nil, errors.New("msgfmt: sector out of range")
		}
		out = append(out, r.data[off:off+r.sectorSize]...)

		if int(sect) >= len(fat) {
			return nil, errors.New("msgfmt: FAT index out of range")
		}
		sect = fat[sect]
	}
	return out, nil
}

func (r *Reader) readMiniChain(start uint32, size uint64) ([]byte, error) {
	var out []byte
	sect := start
	seen := map[uint32]bool{}
	for sect != endOfChain && sect != freeSect {
		if seen[sect] {
			return nil, errors.New("msgfmt: cyclic mini sector chain")
		}
		seen[sect] = true

		off := int(sect) * miniSectorSize
		if off+miniSectorSize > len(r.miniStream) {
			return nil, errors.New("msgfmt: mini sector out of range")
		}
		out = append(out, r.miniStream[off:off+miniSectorSize]...)

		if int(sect) >= len(r.miniFat) {
			return nil, errors.New("msgfmt: mini FAT index out of range")
		}
		sect = r.miniFat[sect]
	}
	if uint64(len(out)) > size {
		out = out[:size]
	}
	return out, nil
}

// parseDirentStream decodes the flat array of 128-byte directory entries.
func (r *Reader) parseDirentStream(raw []byte) ([]*Entry, error) {
	count := len(raw) / direntSize
	entries := make([]*Entry, count)
	for i := 0; i < count; i++ {
		d := raw[i*direntSize : (i+1)*direntSize]
		nameLen := int(binary.LittleEndian.Uint16(d[64:66]))
		var name string
		if nameLen >= 2 {
			name = utf16leToString(d[0 : nameLen-2])
		}
		entries[i] = &Entry{
			Name:       name,
			Type:       d[66],
			StartSect:  binary.LittleEndian.Uint32(d[116:120]),
			StreamSize: binary.LittleEndian.Uint64(d[120:128]),
			left:       binary.LittleEndian.Uint32(d[68:72]),
			right:      binary.LittleEndian.Uint32(d[72:76]),
			child:      binary.LittleEndian.Uint32(d[76:80]),
		}
	}
	return entries, nil
}

func utf16leToString(b []byte) string {
	u16 := make([]uint16, len(b)/2)
	for i := range u16 {
		u16[i] = binary.LittleEndian.Uint16(b[i*2 : i*2+2])
	}
	return decodeUTF16(u16)
}

func decodeUTF16(u16 []uint16) string {
	runes := make([]rune, 0, len(u16))
	for i := 0; i < len(u16); i++ {
		r := rune(u16[i])
		if r >= 0xD800 && r <= 0xDBFF && i+1 < len(u16) {
			r2 := rune(u16[i+1])
			if r2 >= 0xDC00 && r2 <= 0xDFFF {
				r = ((r - 0xD800) << 10) + (r2 - 0xDC00) + 0x10000
				i++
			}
		}
		runes = append(runes, r)
	}
	return string(runes)
}

func bytesToUint32s(b []byte) []uint32 {
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[i*4 : i*4+4])
	}
	return out
}

// linkTree recursively resolves each storage's Children from the on-disk
// red-black tree of sibling/child indices (MS-CFB §2.6.4): a storage's
// child field points at the root of a binary tree of its direct members,
// each carrying left/right sibling pointers within that same storage.
func linkTree(entries []*Entry, idx int) {
	if idx == noStream || int(idx) >= len(entries) {
		return
	}
	e := entries[idx]
	if e.Type != direntStorage && e.Type != direntRootStorage {
		return
	}
	e.Children = collectSiblings(entries, e.child, nil)
	for _, child := range e.Children {
		childIdx := indexOf(entries, child)
		linkTree(entries, childIdx)
	}
}

func collectSiblings(entries []*Entry, idx uint32, acc []*Entry) []*Entry {
	if idx == noStream || int(idx) >= len(entries) {
		return acc
	}
	e := entries[idx]
	acc = collectSiblings(entries, e.left, acc)
	acc = append(acc, e)
	acc = collectSiblings(entries, e.right, acc)
	return acc
}

func indexOf(entries []*Entry, target *Entry) int {
	for i, e := range entries {
		if e == target {
			return i
		}
	}
	return noStream
}

// Entries returns every directory entry reachable from the root, in tree
// order (each entry before its children).
func (r *Reader) Entries() []*Entry {
	if r.root == nil {
		return nil
	}
	var out []*Entry
	var walk func(*Entry)
	walk = func(e *Entry) {
		out = append(out, e)
		for _, c := range e.Children {
			walk(c)
		}
	}
	walk(r.root)
	return out
}
