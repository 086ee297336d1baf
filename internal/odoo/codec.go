package odoo

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// The XML-RPC value codec. Odoo's external API speaks classic XML-RPC, so
// both directions work on dynamic `any` trees: struct ↔ map[string]any,
// array ↔ []any, scalars ↔ string/int/float64/bool/[]byte/time.Time.
// Both the call and response sides are exported; the server-side pair exists
// so tests and tooling can stand in for an Odoo instance.

// dateTimeLayout is the XML-RPC dateTime.iso8601 wire layout.
const dateTimeLayout = "20060102T15:04:05"

// Fault is a decoded XML-RPC fault response.
type Fault struct {
	Code   int
	String string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("xmlrpc fault %d: %s", f.Code, f.String)
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

// MarshalMethodCall encodes an XML-RPC methodCall document.
func MarshalMethodCall(method string, params []any) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(xml.Header)
	b.WriteString("<methodCall><methodName>")
	if err := xml.EscapeText(&b, []byte(method)); err != nil {
		return nil, err
	}
	b.WriteString("</methodName><params>")
	for _, p := range params {
		b.WriteString("<param>")
		if err := encodeValue(&b, p); err != nil {
			return nil, fmt.Errorf("marshal param: %w", err)
		}
		b.WriteString("</param>")
	}
	b.WriteString("</params></methodCall>")
	return b.Bytes(), nil
}

// MarshalMethodResponse encodes a successful XML-RPC methodResponse carrying
// a single result value.
func MarshalMethodResponse(result any) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(xml.Header)
	b.WriteString("<methodResponse><params><param>")
	if err := encodeValue(&b, result); err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}
	b.WriteString("</param></params></methodResponse>")
	return b.Bytes(), nil
}

// MarshalFault encodes an XML-RPC fault methodResponse.
func MarshalFault(f *Fault) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(xml.Header)
	b.WriteString("<methodResponse><fault>")
	err := encodeValue(&b, map[string]any{
		"faultCode":   f.Code,
		"faultString": f.String,
	})
	if err != nil {
		return nil, err
	}
	b.WriteString("</fault></methodResponse>")
	return b.Bytes(), nil
}

func encodeValue(b *bytes.Buffer, v any) error {
	b.WriteString("<value>")
	defer b.WriteString("</value>")

	switch t := v.(type) {
	case nil:
		b.WriteString("<nil/>")
	case bool:
		if t {
			b.WriteString("<boolean>1</boolean>")
		} else {
			b.WriteString("<boolean>0</boolean>")
		}
	case int:
		fmt.Fprintf(b, "<int>%d</int>", t)
	case int64:
		fmt.Fprintf(b, "<int>%d</int>", t)
	case float64:
		fmt.Fprintf(b, "<double>%g</double>", t)
	case string:
		b.WriteString("<string>")
		if err := xml.EscapeText(b, []byte(t)); err != nil {
			return err
		}
		b.WriteString("</string>")
	case []byte:
		b.WriteString("<base64>")
		b.WriteString(base64.StdEncoding.EncodeToString(t))
		b.WriteString("</base64>")
	case time.Time:
		b.WriteString("<dateTime.iso8601>")
		b.WriteString(t.Format(dateTimeLayout))
		b.WriteString("</dateTime.iso8601>")
	case []any:
		b.WriteString("<array><data>")
		for _, el := range t {
			if err := encodeValue(b, el); err != nil {
				return err
			}
		}
		b.WriteString("</data></array>")
	case []string:
		b.WriteString("<array><data>")
		for _, el := range t {
			if err := encodeValue(b, el); err != nil {
				return err
			}
		}
		b.WriteString("</data></array>")
	case []int:
		b.WriteString("<array><data>")
		for _, el := range t {
			if err := encodeValue(b, el); err != nil {
				return err
			}
		}
		b.WriteString("</data></array>")
	case map[string]any:
		b.WriteString("<struct>")
		for name, member := range t {
			b.WriteString("<member><name>")
			if err := xml.EscapeText(b, []byte(name)); err != nil {
				return err
			}
			b.WriteString("</name>")
			if err := encodeValue(b, member); err != nil {
				return err
			}
			b.WriteString("</member>")
		}
		b.WriteString("</struct>")
	default:
		return fmt.Errorf("unsupported xmlrpc type %T", v)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

// UnmarshalMethodResponse decodes an XML-RPC methodResponse body.
// A fault response is returned as a *Fault error.
func UnmarshalMethodResponse(r io.Reader) (any, error) {
	d := xml.NewDecoder(r)
	var inFault bool
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return nil, fmt.Errorf("xmlrpc: truncated response")
		}
		if err != nil {
			return nil, fmt.Errorf("xmlrpc: parse response: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "methodResponse", "params", "param":
			continue
		case "fault":
			inFault = true
		case "value":
			v, err := decodeValue(d)
			if err != nil {
				return nil, err
			}
			if inFault {
				return nil, faultFromValue(v)
			}
			return v, nil
		default:
			return nil, fmt.Errorf("xmlrpc: unexpected element <%s>", start.Name.Local)
		}
	}
}

// UnmarshalMethodCall decodes an XML-RPC methodCall body into its method
// name and parameter values.
func UnmarshalMethodCall(r io.Reader) (method string, params []any, err error) {
	d := xml.NewDecoder(r)
	for {
		tok, err := d.Token()
		if err == io.EOF {
			if method == "" {
				return "", nil, fmt.Errorf("xmlrpc: truncated call")
			}
			return method, params, nil
		}
		if err != nil {
			return "", nil, fmt.Errorf("xmlrpc: parse call: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "methodCall", "params", "param":
			continue
		case "methodName":
			var name string
			if err := d.DecodeElement(&name, &start); err != nil {
				return "", nil, err
			}
			method = strings.TrimSpace(name)
		case "value":
			v, err := decodeValue(d)
			if err != nil {
				return "", nil, err
			}
			params = append(params, v)
		default:
			return "", nil, fmt.Errorf("xmlrpc: unexpected element <%s>", start.Name.Local)
		}
	}
}

// decodeValue consumes the contents of a <value> element, positioned just
// after its start tag, and returns the decoded Go value.
func decodeValue(d *xml.Decoder) (any, error) {
	// A value with no type element is a bare string; collect character data
	// until either a start tag (typed value) or the closing </value>.
	var text strings.Builder
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, fmt.Errorf("xmlrpc: parse value: %w", err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			text.Write(t)
		case xml.EndElement: // </value> with no type element
			return text.String(), nil
		case xml.StartElement:
			v, err := decodeTyped(d, t)
			if err != nil {
				return nil, err
			}
			if err := skipToEnd(d); err != nil { // consume </value>
				return nil, err
			}
			return v, nil
		}
	}
}

// decodeTyped decodes a typed element (<int>, <struct>, …) including its end tag.
func decodeTyped(d *xml.Decoder, start xml.StartElement) (any, error) {
	switch start.Name.Local {
	case "nil":
		return nil, d.Skip()
	case "string":
		var s string
		return s, decodeElem(d, start, &s)
	case "boolean":
		var s string
		if err := decodeElem(d, start, &s); err != nil {
			return nil, err
		}
		switch strings.TrimSpace(s) {
		case "1":
			return true, nil
		case "0":
			return false, nil
		}
		return nil, fmt.Errorf("xmlrpc: bad boolean %q", s)
	case "int", "i4", "i8":
		var s string
		if err := decodeElem(d, start, &s); err != nil {
			return nil, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("xmlrpc: bad int %q", s)
		}
		return n, nil
	case "double":
		var s string
		if err := decodeElem(d, start, &s); err != nil {
			return nil, err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, fmt.Errorf("xmlrpc: bad double %q", s)
		}
		return f, nil
	case "base64":
		var s string
		if err := decodeElem(d, start, &s); err != nil {
			return nil, err
		}
		b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("xmlrpc: bad base64: %w", err)
		}
		return b, nil
	case "dateTime.iso8601":
		var s string
		if err := decodeElem(d, start, &s); err != nil {
			return nil, err
		}
		ts, err := time.Parse(dateTimeLayout, strings.TrimSpace(s))
		if err != nil {
			// Odoo occasionally emits dashed dates; keep the raw string then.
			return strings.TrimSpace(s), nil
		}
		return ts, nil
	case "array":
		return decodeArray(d)
	case "struct":
		return decodeStruct(d)
	}
	return nil, fmt.Errorf("xmlrpc: unknown value type <%s>", start.Name.Local)
}

func decodeArray(d *xml.Decoder) ([]any, error) {
	vals := make([]any, 0, 4)
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, fmt.Errorf("xmlrpc: parse array: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "data":
				continue
			case "value":
				v, err := decodeValue(d)
				if err != nil {
					return nil, err
				}
				vals = append(vals, v)
			default:
				return nil, fmt.Errorf("xmlrpc: unexpected <%s> in array", t.Name.Local)
			}
		case xml.EndElement:
			if t.Name.Local == "array" {
				return vals, nil
			}
		}
	}
}

func decodeStruct(d *xml.Decoder) (map[string]any, error) {
	m := make(map[string]any)
	var name string
	var haveName bool
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, fmt.Errorf("xmlrpc: parse struct: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "member":
				haveName = false
			case "name":
				if err := d.DecodeElement(&name, &t); err != nil {
					return nil, err
				}
				haveName = true
			case "value":
				if !haveName {
					return nil, fmt.Errorf("xmlrpc: struct value before name")
				}
				v, err := decodeValue(d)
				if err != nil {
					return nil, err
				}
				m[name] = v
			default:
				return nil, fmt.Errorf("xmlrpc: unexpected <%s> in struct", t.Name.Local)
			}
		case xml.EndElement:
			if t.Name.Local == "struct" {
				return m, nil
			}
		}
	}
}

// decodeElem reads the text content of the element started by start.
func decodeElem(d *xml.Decoder, start xml.StartElement, out *string) error {
	return d.DecodeElement(out, &start)
}

// skipToEnd consumes tokens up to and including the next end element at the
// current depth (the closing </value> after a typed element).
func skipToEnd(d *xml.Decoder) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		if _, ok := tok.(xml.EndElement); ok {
			return nil
		}
	}
}

func faultFromValue(v any) error {
	m, ok := v.(map[string]any)
	if !ok {
		return &Fault{String: fmt.Sprintf("%v", v)}
	}
	f := &Fault{}
	if c, ok := m["faultCode"].(int); ok {
		f.Code = c
	}
	if s, ok := m["faultString"].(string); ok {
		f.String = s
	}
	return f
}
