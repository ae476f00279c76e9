package attachment

import (
	"os"
	"path/filepath"
	"strings"
)

// extensionMIME covers the attachment types the store commonly reports.
var extensionMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
	".heif": "image/heif",
	".tiff": "image/tiff",
	".bmp":  "image/bmp",
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mov":  "video/quicktime",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".wav":  "audio/wav",
	".caf":  "audio/x-caf",
	".amr":  "audio/amr",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".vcf":  "text/vcard",
	".zip":  "application/zip",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// sniffLen bounds how much of the file the signature sniff reads.
const sniffLen = 64

// DetermineMime resolves an attachment's MIME type: a non-empty declared
// value wins, then the extension table, then a signature sniff of the first
// bytes. Returns "" when nothing matches; sniffing I/O failures also yield
// "" rather than an error.
func DetermineMime(declared, path string) string {
	if declared != "" {
		return declared
	}
	if m, ok := extensionMIME[strings.ToLower(filepath.Ext(path))]; ok {
		return m
	}
	return sniffMime(path)
}

func sniffMime(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, sniffLen)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return ""
	}
	buf = buf[:n]

	switch {
	case len(buf) >= 3 && buf[0] == 0xFF && buf[1] == 0xD8 && buf[2] == 0xFF:
		return "image/jpeg"
	case len(buf) >= 8 && string(buf[:8]) == "\x89PNG\r\n\x1a\n":
		return "image/png"
	case len(buf) >= 4 && string(buf[:4]) == "GIF8":
		return "image/gif"
	case len(buf) >= 12 && string(buf[:4]) == "RIFF" && string(buf[8:12]) == "WEBP":
		return "image/webp"
	case len(buf) >= 4 && string(buf[:4]) == "%PDF":
		return "application/pdf"
	case len(buf) >= 4 && string(buf[:4]) == "PK\x03\x04":
		return "application/zip"
	case len(buf) >= 12 && string(buf[4:8]) == "ftyp":
		return bmffMime(string(buf[8:12]))
	}
	return ""
}

// bmffMime distinguishes the ISO-BMFF family by major brand.
func bmffMime(brand string) string {
	switch strings.TrimRight(brand, " ") {
	case "heic", "heix", "hevc", "hevx":
		return "image/heic"
	case "heif", "mif1", "msf1":
		return "image/heif"
	case "qt":
		return "video/quicktime"
	case "M4A":
		return "audio/mp4"
	case "mp41", "mp42", "isom", "iso2", "avc1":
		return "video/mp4"
	}
	return ""
}

// IsHEIC reports whether a MIME type is in the HEIC/HEIF family.
func IsHEIC(mime string) bool {
	return mime == "image/heic" || mime == "image/heif"
}
