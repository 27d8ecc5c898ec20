package persistence

import (
	"bytes"
	"encoding/xml"
	"strings"
	"testing"

	"github.com/kbukum/serverkit/modules"
)

const currentDoc = `<?xml version="1.0" encoding="UTF-8"?>
<server xmlns="urn:jboss:domain:1.7" name="node-a">
    <extensions>
        <extension module="org.example.logging"/>
    </extensions>
    <system-properties>
        <property name="jboss.bind.address" value="127.0.0.1"/>
    </system-properties>
    <profile>
        <subsystem xmlns="urn:example:logging:1.0"><root-logger level="INFO"/></subsystem>
    </profile>
    <deployments>
        <deployment name="app.war" runtime-name="app.war"/>
    </deployments>
</server>
`

var legacyDoc = strings.Replace(currentDoc, NamespaceCurrent, NamespaceDomain10, 1)

func testLoader(t *testing.T) *modules.Registry {
	t.Helper()
	r := modules.NewRegistry(nil)
	if err := r.Register(&modules.Module{Name: "org.example.logging"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return r
}

func readWith(t *testing.T, codec *ServerCodec, src string) (*Document, error) {
	t.Helper()
	readers := map[xml.Name]ElementReader{CurrentRoot: codec, LegacyRoot: codec}
	return decodeRoot(strings.NewReader(src), readers)
}

func TestServerCodecRead(t *testing.T) {
	codec := NewServerCodec(testLoader(t))

	doc, err := readWith(t, codec, currentDoc)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if doc.XMLName != CurrentRoot {
		t.Errorf("root = %v, want %v", doc.XMLName, CurrentRoot)
	}
	if doc.Name != "node-a" {
		t.Errorf("name = %q, want node-a", doc.Name)
	}
	if len(doc.Extensions) != 1 || doc.Extensions[0].Module != "org.example.logging" {
		t.Errorf("extensions = %+v", doc.Extensions)
	}
	if len(doc.SystemProperties) != 1 || doc.SystemProperties[0].Value != "127.0.0.1" {
		t.Errorf("system properties = %+v", doc.SystemProperties)
	}
	if len(doc.Subsystems) != 1 || doc.Subsystems[0].Namespace() != "urn:example:logging:1.0" {
		t.Fatalf("subsystems = %+v", doc.Subsystems)
	}
	if !bytes.Contains(doc.Subsystems[0].Content, []byte("root-logger")) {
		t.Errorf("subsystem content = %q", doc.Subsystems[0].Content)
	}
	if len(doc.Deployments) != 1 || doc.Deployments[0].Name != "app.war" {
		t.Errorf("deployments = %+v", doc.Deployments)
	}
}

func TestServerCodecRejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", ``},
		{"unexpected root", `<domain xmlns="urn:jboss:domain:1.7"/>`},
		{"unknown namespace", `<server xmlns="urn:jboss:domain:9.9"/>`},
		{"unknown module", `<server xmlns="urn:jboss:domain:1.7"><extensions><extension module="org.example.missing"/></extensions></server>`},
		{"duplicate extension", `<server xmlns="urn:jboss:domain:1.7"><extensions><extension module="org.example.logging"/><extension module="org.example.logging"/></extensions></server>`},
		{"extension without module", `<server xmlns="urn:jboss:domain:1.7"><extensions><extension/></extensions></server>`},
		{"deployment without name", `<server xmlns="urn:jboss:domain:1.7"><deployments><deployment runtime-name="x"/></deployments></server>`},
		{"malformed", `<server xmlns="urn:jboss:domain:1.7"><extensions>`},
	}

	codec := NewServerCodec(testLoader(t))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := readWith(t, codec, tt.src); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestServerCodecWriteUsesGivenRoot(t *testing.T) {
	codec := NewServerCodec(testLoader(t))
	doc, err := readWith(t, codec, legacyDoc)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var buf bytes.Buffer
	if err := codec.WriteElement(&buf, CurrentRoot, doc); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8"?>`) {
		t.Errorf("missing XML header: %q", out)
	}
	if !strings.Contains(out, `xmlns="urn:jboss:domain:1.7"`) {
		t.Errorf("expected current namespace in output: %s", out)
	}
	if doc.XMLName != LegacyRoot {
		t.Errorf("write mutated the source document root")
	}

	again, err := readWith(t, codec, out)
	if err != nil {
		t.Fatalf("re-read failed: %v", err)
	}
	if again.Name != doc.Name || len(again.Subsystems) != 1 || again.Subsystems[0].Namespace() != "urn:example:logging:1.0" {
		t.Errorf("re-read document differs: %+v", again)
	}
}
