package launcher

import "github.com/GoCodeAlone/launcher/logging"

// Logger is the logging contract shared by every launcher package.
// *slog.Logger satisfies it.
type Logger = logging.Logger
