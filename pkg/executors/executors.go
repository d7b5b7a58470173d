package executors

import (
	"encoding/json"
	"fmt"

	"github.com/makr91/zoneweaver-api/pkg/command"
	"github.com/makr91/zoneweaver-api/pkg/storage"
	"github.com/makr91/zoneweaver-api/pkg/types"
)

// Deps bundles the collaborators every executor needs. A single struct
// keeps Register's signature stable as new executors are added.
type Deps struct {
	Runner *command.Runner
	Store  storage.Store
}

func decode(metadata []byte, v interface{}) error {
	if len(metadata) == 0 {
		return fmt.Errorf("missing task metadata")
	}
	if err := json.Unmarshal(metadata, v); err != nil {
		return fmt.Errorf("invalid task metadata: %w", err)
	}
	return nil
}

func fail(format string, args ...interface{}) types.HandlerResult {
	return types.HandlerResult{Success: false, Error: fmt.Sprintf(format, args...)}
}

func ok(message string) types.HandlerResult {
	return types.HandlerResult{Success: true, Message: message}
}

func progressInfo(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
