package flow

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
)

// Attachment is one link harvested from a downloaded document.
type Attachment struct {
	URL string
}

// AttachmentSource extracts the attachments of a downloaded document. The
// physical file is addressed the way the download agent stores it, as a
// share:// URI.
type AttachmentSource interface {
	List(ctx context.Context, physicalFile, baseURL string) ([]Attachment, error)
}

const sharePrefix = "share://"

// HTMLScanner lists the anchors of an HTML document as attachments.
type HTMLScanner struct {
	// ShareFolder is the mount backing share:// URIs.
	ShareFolder string
}

// List parses the document and returns its absolute http(s) links, relative
// hrefs resolved against baseURL, deduplicated in document order.
func (s *HTMLScanner) List(ctx context.Context, physicalFile, baseURL string) ([]Attachment, error) {
	path, err := s.localPath(physicalFile)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open downloaded document: %w", err)
	}
	defer f.Close()

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse document base url %q: %w", baseURL, err)
	}

	doc, err := html.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse document %s: %w", physicalFile, err)
	}

	var attachments []Attachment
	seen := make(map[string]bool)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				href := strings.TrimSpace(attr.Val)
				if href == "" || strings.HasPrefix(href, "#") {
					break
				}
				ref, err := url.Parse(href)
				if err != nil {
					break
				}
				abs := base.ResolveReference(ref)
				if abs.Scheme != "http" && abs.Scheme != "https" {
					break
				}
				abs.Fragment = ""
				if link := abs.String(); !seen[link] {
					seen[link] = true
					attachments = append(attachments, Attachment{URL: link})
				}
				break
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return attachments, nil
}

// localPath maps a share:// URI onto the mounted share folder, refusing
// paths that climb out of it.
func (s *HTMLScanner) localPath(physicalFile string) (string, error) {
	if !strings.HasPrefix(physicalFile, sharePrefix) {
		return "", fmt.Errorf("physical file %q is not a share:// URI", physicalFile)
	}
	rel := filepath.Clean(strings.TrimPrefix(physicalFile, sharePrefix))
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", fmt.Errorf("physical file %q escapes the share folder", physicalFile)
	}
	return filepath.Join(s.ShareFolder, rel), nil
}
