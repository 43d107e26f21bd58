package dmi

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

const descriptionKey = "Description"

// maxDescription bounds the inflated metadata text.
const maxDescription = 8 << 20

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

type chunk struct {
	kind string
	data []byte
}

func readChunks(data []byte) ([]chunk, error) {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, errors.New("not a PNG file")
	}
	r := bytes.NewReader(data[len(pngSignature):])
	var out []chunk
	for r.Len() > 0 {
		var length uint32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return nil, fmt.Errorf("read chunk length: %w", err)
		}
		if int64(length) > int64(r.Len()) {
			return nil, errors.New("chunk length exceeds file")
		}
		head := make([]byte, 4+int(length))
		if _, err := io.ReadFull(r, head); err != nil {
			return nil, fmt.Errorf("read chunk: %w", err)
		}
		var sum uint32
		if err := binary.Read(r, binary.BigEndian, &sum); err != nil {
			return nil, fmt.Errorf("read chunk crc: %w", err)
		}
		if crc32.ChecksumIEEE(head) != sum {
			return nil, fmt.Errorf("chunk %s: bad crc", head[:4])
		}
		c := chunk{kind: string(head[:4]), data: head[4:]}
		out = append(out, c)
		if c.kind == "IEND" {
			break
		}
	}
	return out, nil
}

// readDescription finds the DMI metadata in a tEXt or zTXt chunk.
func readDescription(data []byte) (string, bool, error) {
	chunks, err := readChunks(data)
	if err != nil {
		return "", false, err
	}
	for _, c := range chunks {
		key, rest, ok := bytes.Cut(c.data, []byte{0})
		if !ok || string(key) != descriptionKey {
			continue
		}
		switch c.kind {
		case "tEXt":
			return string(rest), true, nil
		case "zTXt":
			if len(rest) == 0 || rest[0] != 0 {
				return "", false, errors.New("zTXt: unknown compression method")
			}
			zr, err := zlib.NewReader(bytes.NewReader(rest[1:]))
			if err != nil {
				return "", false, fmt.Errorf("zTXt: %w", err)
			}
			text, err := io.ReadAll(io.LimitReader(zr, maxDescription+1))
			zr.Close()
			if err != nil {
				return "", false, fmt.Errorf("zTXt: %w", err)
			}
			if len(text) > maxDescription {
				return "", false, fmt.Errorf("zTXt: description exceeds %d bytes", maxDescription)
			}
			return string(text), true, nil
		}
	}
	return "", false, nil
}

func writeChunk(w io.Writer, c chunk) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(c.data))); err != nil {
		return err
	}
	body := append([]byte(c.kind), c.data...)
	if _, err := w.Write(body); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, crc32.ChecksumIEEE(body))
}

// withDescription rewrites an encoded PNG so its first ancillary chunk is
// the compressed metadata text.
func withDescription(encoded []byte, text string) ([]byte, error) {
	chunks, err := readChunks(encoded)
	if err != nil {
		return nil, err
	}
	var z bytes.Buffer
	z.WriteString(descriptionKey)
	z.WriteByte(0)
	z.WriteByte(0)
	zw := zlib.NewWriter(&z)
	if _, err := zw.Write([]byte(text)); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	out.Write(pngSignature)
	for _, c := range chunks {
		if err := writeChunk(&out, c); err != nil {
			return nil, err
		}
		if c.kind == "IHDR" {
			if err := writeChunk(&out, chunk{kind: "zTXt", data: z.Bytes()}); err != nil {
				return nil, err
			}
		}
	}
	return out.Bytes(), nil
}
