package cli

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/artemshloyda/imgshrink/internal/batch"
	"github.com/artemshloyda/imgshrink/internal/config"
	"github.com/artemshloyda/imgshrink/internal/scanner"
	"github.com/artemshloyda/imgshrink/internal/watcher"
)

// newInputWatcher запускает слежение с теми же фильтрами, что и пакетный поиск.
func newInputWatcher(ctx context.Context, req batch.Request, cfg *config.Config, log zerolog.Logger) (<-chan scanner.File, error) {
	sc := scanner.New(req.InputDir, cfg.InputExtensions)
	sc.Exclude(req.OutputDir)

	w, err := watcher.New(req.InputDir, sc, log)
	if err != nil {
		return nil, err
	}
	return w.Watch(ctx)
}
