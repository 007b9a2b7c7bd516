package memory

import (
	"context"
	"fmt"

	"github.com/almforge/go-polarion/pkg/core"
)

var _ core.Downloader = (*Store)(nil)

// DownloadAttachment serves the content behind a URL the store handed
// out in an attachment descriptor.
func (s *Store) DownloadAttachment(ctx context.Context, url string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("Store.DownloadAttachment")
	data, ok := s.downloads[url]
	if !ok {
		return nil, fmt.Errorf("no content at %s", url)
	}
	return append([]byte(nil), data...), nil
}
