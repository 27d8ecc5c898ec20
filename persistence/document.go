package persistence

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/kbukum/serverkit/modules"
)

// Document namespaces and root element.
const (
	NamespaceCurrent  = "urn:jboss:domain:1.7"
	NamespaceDomain10 = "urn:jboss:domain:1.0"
	RootElement       = "server"
)

// CurrentRoot is the root element written by every persister.
var CurrentRoot = xml.Name{Space: NamespaceCurrent, Local: RootElement}

// LegacyRoot is the older root element still accepted on read.
var LegacyRoot = xml.Name{Space: NamespaceDomain10, Local: RootElement}

// Document is the server configuration document. Its boot order is
// extensions, then subsystems, then deployments. XMLName carries the root
// element as read; writers replace it with the root they persist under.
type Document struct {
	XMLName          xml.Name
	Name             string       `xml:"name,attr,omitempty"`
	Extensions       []Extension  `xml:"extensions>extension"`
	SystemProperties []Property   `xml:"system-properties>property"`
	Subsystems       []Subsystem  `xml:"profile>subsystem"`
	Deployments      []Deployment `xml:"deployments>deployment"`
}

// NewDocument returns an empty document under the current namespace.
func NewDocument() *Document {
	return &Document{XMLName: CurrentRoot}
}

// Extension names a module to load at boot.
type Extension struct {
	Module string `xml:"module,attr"`
}

// Property is a system property set at boot.
type Property struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// Subsystem keeps a subsystem's configuration as raw XML; the extension
// that owns the namespace interprets it.
type Subsystem struct {
	XMLName xml.Name
	Content []byte `xml:",innerxml"`
}

// Namespace returns the subsystem's namespace.
func (s Subsystem) Namespace() string {
	return s.XMLName.Space
}

// Deployment is an application deployed at boot.
type Deployment struct {
	Name        string `xml:"name,attr"`
	RuntimeName string `xml:"runtime-name,attr,omitempty"`
	Disabled    bool   `xml:"disabled,attr,omitempty"`
}

// ElementReader parses a document whose root element has been matched.
type ElementReader interface {
	ReadElement(d *xml.Decoder, start xml.StartElement) (*Document, error)
}

// ElementWriter writes a document under the given root element.
type ElementWriter interface {
	WriteElement(w io.Writer, root xml.Name, doc *Document) error
}

// ServerCodec reads and writes the server document grammar. One instance
// serves every registered root element.
type ServerCodec struct {
	loader modules.Loader
}

// NewServerCodec creates a codec. When loader is non-nil every extension
// module named in a document must resolve.
func NewServerCodec(loader modules.Loader) *ServerCodec {
	return &ServerCodec{loader: loader}
}

// ReadElement decodes the document rooted at start.
func (c *ServerCodec) ReadElement(d *xml.Decoder, start xml.StartElement) (*Document, error) {
	var doc Document
	if err := d.DecodeElement(&doc, &start); err != nil {
		return nil, fmt.Errorf("decode %s: %w", start.Name.Local, err)
	}
	doc.XMLName = start.Name

	seen := make(map[string]struct{}, len(doc.Extensions))
	for _, ext := range doc.Extensions {
		if ext.Module == "" {
			return nil, fmt.Errorf("extension without module attribute")
		}
		if _, dup := seen[ext.Module]; dup {
			return nil, fmt.Errorf("duplicate extension %s", ext.Module)
		}
		seen[ext.Module] = struct{}{}
		if c.loader != nil {
			if _, err := c.loader.Load(ext.Module); err != nil {
				return nil, err
			}
		}
	}
	for _, dep := range doc.Deployments {
		if dep.Name == "" {
			return nil, fmt.Errorf("deployment without name attribute")
		}
	}
	return &doc, nil
}

// WriteElement encodes doc with root as its root element.
func (c *ServerCodec) WriteElement(w io.Writer, root xml.Name, doc *Document) error {
	out := *doc
	out.XMLName = root

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "    ")
	if err := enc.Encode(&out); err != nil {
		return fmt.Errorf("encode %s: %w", root.Local, err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// decodeRoot finds the root element and dispatches to the reader
// registered for its name.
func decodeRoot(r io.Reader, readers map[xml.Name]ElementReader) (*Document, error) {
	d := xml.NewDecoder(r)
	for {
		tok, err := d.Token()
		if err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("document has no root element")
			}
			return nil, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		reader, ok := readers[start.Name]
		if !ok {
			return nil, fmt.Errorf("unexpected root element {%s}%s", start.Name.Space, start.Name.Local)
		}
		return reader.ReadElement(d, start)
	}
}
