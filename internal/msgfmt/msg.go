package msgfmt

import (
	"strings"
)

// Message is the handful of MAPI properties the pipeline needs out of a
// .msg file: header fields for the rendered body page, the body itself
// (HTML preferred, falling back to plain text), and attachments.
type Message struct {
	Subject string
	From    string
	To      string
	Body    string
	HTML    string

	Attachments []Attachment
}

// Attachment is one embedded file, kept as original bytes and filename
// (spec §4.5).
type Attachment struct {
	FileName string
	Data     []byte
}

// Parse reads a .msg file's MAPI properties into a Message.
func Parse(raw []byte) (*Message, error) {
	r, err := Open(raw)
	if err != nil {
		return nil, err
	}

	msg := &Message{}
	root := r.Root()

	msg.Subject = readPropString(r, root, "0037")
	msg.From = firstNonEmpty(readPropString(r, root, "0042"), readPropString(r, root, "0C1A"))
	msg.To = readPropString(r, root, "0E04")
	msg.Body = readPropString(r, root, "1000")
	msg.HTML = readPropBinaryAsString(r, root, "1013")

	for _, child := range root.Children {
		if !strings.HasPrefix(child.Name, "__attach_version1.0_#") {
			continue
		}
		att := Attachment{}
		att.FileName = firstNonEmpty(readPropString(r, child, "3707"), readPropString(r, child, "3704"))
		if data, ok := readPropBinary(r, child, "3701"); ok {
			att.Data = data
		}
		if att.FileName == "" && att.Data == nil {
			continue
		}
		msg.Attachments = append(msg.Attachments, att)
	}

	return msg, nil
}

// readPropString finds a string-typed property (unicode 0x001F or ANSI
// 0x001E) by its 4-hex-digit tag under storage, returning "" if absent.
func readPropString(r *Reader, storage *Entry, tag string) string {
	for _, typ := range []string{"001F", "001E"} {
		e := findChildStream(storage, "__substg1.0_"+tag+typ)
		if e == nil {
			continue
		}
		data, err := r.ReadStream(e)
		if err != nil {
			continue
		}
		if typ == "001F" {
			return utf16leToString(data)
		}
		return string(data)
	}
	return ""
}

func readPropBinary(r *Reader, storage *Entry, tag string) ([]byte, bool) {
	e := findChildStream(storage, "__substg1.0_"+tag+"0102")
	if e == nil {
		return nil, false
	}
	data, err := r.ReadStream(e)
	if err != nil {
		return nil, false
	}
	return data, true
}

func readPropBinaryAsString(r *Reader, storage *Entry, tag string) string {
	data, ok := readPropBinary(r, storage, tag)
	if !ok {
		return ""
	}
	return string(data)
}

func findChildStream(storage *Entry, name string) *Entry {
	for _, c := range storage.Children {
		if c.Name == name && c.IsStream() {
			return c
		}
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
