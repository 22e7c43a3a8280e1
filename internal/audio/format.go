package audio

import "bytes"

// Container formats observed in uploaded utterances. The pipeline never
// transcodes; the format is sniffed only for logging and diagnostics.
const (
	FormatWebM    = "webm"
	FormatOgg     = "ogg"
	FormatWAV     = "wav"
	FormatMP3     = "mp3"
	FormatMP4     = "mp4"
	FormatUnknown = "unknown"
)

var (
	ebmlMagic = []byte{0x1A, 0x45, 0xDF, 0xA3}
	oggMagic  = []byte("OggS")
	riffMagic = []byte("RIFF")
	waveMagic = []byte("WAVE")
	id3Magic  = []byte("ID3")
	ftypMagic = []byte("ftyp")
)

// DetectFormat sniffs the container of an uploaded audio blob from its magic
// bytes. Browsers send WebM from MediaRecorder; the other branches cover
// non-browser clients replaying recorded files.
func DetectFormat(data []byte) string {
	if len(data) < 4 {
		return FormatUnknown
	}
	switch {
	case bytes.HasPrefix(data, ebmlMagic):
		return FormatWebM
	case bytes.HasPrefix(data, oggMagic):
		return FormatOgg
	case bytes.HasPrefix(data, riffMagic):
		if len(data) >= 12 && bytes.Equal(data[8:12], waveMagic) {
			return FormatWAV
		}
		return FormatUnknown
	case bytes.HasPrefix(data, id3Magic):
		return FormatMP3
	case len(data) >= 3 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		// Raw MPEG frame sync without an ID3 tag.
		return FormatMP3
	case len(data) >= 12 && bytes.Equal(data[4:8], ftypMagic):
		return FormatMP4
	default:
		return FormatUnknown
	}
}
