package outline

import (
	"strconv"
	"strings"
)

const DefaultImageHost = "https://document-image.mubu.com/"

// NormalizeImageURL resolves a relative image reference against host.
func NormalizeImageURL(host, uri string) string {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return ""
	}
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		return uri
	}
	if host == "" {
		host = DefaultImageHost
	}
	if !strings.HasSuffix(host, "/") {
		host += "/"
	}
	return host + strings.TrimLeft(uri, "/")
}

// ImageSource is the normalised URL with the resize hint appended when the
// image carries a width.
func ImageSource(host string, img Image) string {
	u := NormalizeImageURL(host, img.URI)
	if u == "" || img.Width <= 0 {
		return u
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + "x-tos-process=image/resize,w_" + strconv.Itoa(img.Width)
}

// imageAlt picks the supplied alt text or the positional fallback.
func imageAlt(img Image, fallback string) string {
	if alt := sanitizeAlt(img.Alt); alt != "" {
		return alt
	}
	if alt := sanitizeAlt(fallback); alt != "" {
		return alt
	}
	return "image"
}
