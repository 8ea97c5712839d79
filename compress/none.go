package compress

import "github.com/xpra-org/xpra-wire/frame"

// noneCompressor is the always-present passthrough codec.
type noneCompressor struct{}

func (noneCompressor) Code() byte { return frame.CompressorNone }

func (noneCompressor) Compress(data []byte) []byte { return data }

func (noneCompressor) Decompress(data []byte) ([]byte, error) { return data, nil }
