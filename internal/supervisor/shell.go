package supervisor

import "log/slog"

// Shell is the window layer the supervisor drives.
type Shell interface {
	ShowLoading()
	CloseLoading()
	ShowMain(url string)
}

// LogShell is a headless Shell that only records what a desktop shell would
// have shown.
type LogShell struct {
	logger *slog.Logger
}

func NewLogShell(logger *slog.Logger) *LogShell {
	return &LogShell{logger: logger}
}

func (s *LogShell) ShowLoading() {
	s.logger.Info("waiting for backend to become ready")
}

func (s *LogShell) CloseLoading() {
	s.logger.Debug("loading surface closed")
}

func (s *LogShell) ShowMain(url string) {
	s.logger.Info("backend ready", "url", url)
}
