package data

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"
)

// textEncoding maps a content file encoding name to its decoder. UTF-8 needs
// none.
func textEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "euc-kr", "euckr", "cp949":
		return korean.EUCKR, nil
	case "big5":
		return traditionalchinese.Big5, nil
	}
	return nil, fmt.Errorf("unsupported content encoding %q", name)
}

// readText reads a content file and converts it to UTF-8.
func readText(path, enc string) ([]byte, error) {
	e, err := textEncoding(enc)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return raw, nil
	}
	out, _, err := transform.Bytes(e.NewDecoder(), raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", enc, err)
	}
	return out, nil
}
