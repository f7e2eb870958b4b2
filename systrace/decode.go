package systrace

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
)

const traceMarker = "TRACE:"

// decodeTraceData extracts the compressed trace from the output of an
// atrace command run through adb shell.
func decodeTraceData(out []byte) ([]byte, error) {
	i := bytes.Index(out, []byte(traceMarker))
	if i < 0 {
		return nil, errors.New("systrace start marker not found")
	}
	data := out[i+len(traceMarker):]

	// adb shell turns every LF into CRLF.
	if bytes.HasPrefix(data, []byte("\r\n")) {
		data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	}

	if len(data) == 0 {
		return nil, nil
	}
	// Skip the newline after the marker.
	return data[1:], nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid compressed trace: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress trace: %w", err)
	}
	return out, nil
}
