package artifact

import (
	"time"

	"github.com/makr91/zoneweaver-api/pkg/registry"
	"github.com/makr91/zoneweaver-api/pkg/types"
)

// Register installs every artifact operation into reg. Download is
// declared PerZoneExclusive: the API layer sets zone_name to the target
// storage location's id, so only one download per location runs at a
// time while downloads into different locations proceed concurrently;
// the scan/download race rule additionally relies on Engine's own
// downloadingPaths bookkeeping.
func Register(reg *registry.Registry, e *Engine) {
	reg.Register(registry.Entry{
		Operation: "artifact_download_url", Fn: e.DownloadURL,
		DefaultPriority: types.PriorityMedium, DefaultTimeout: 30 * time.Minute, PerZoneExclusive: true,
	})
	reg.Register(registry.Entry{
		Operation: "artifact_scan_location", Fn: e.ScanLocation,
		DefaultPriority: types.PriorityLow, DefaultTimeout: 5 * time.Minute,
	})
	reg.Register(registry.Entry{
		Operation: "artifact_scan_all", Fn: e.ScanAll,
		DefaultPriority: types.PriorityLow, DefaultTimeout: 15 * time.Minute,
	})
	reg.Register(registry.Entry{
		Operation: "artifact_delete_file", Fn: e.DeleteFile,
		DefaultPriority: types.PriorityMedium, DefaultTimeout: 2 * time.Minute, Serial: true,
	})
	reg.Register(registry.Entry{
		Operation: "artifact_upload_process", Fn: e.UploadProcess,
		DefaultPriority: types.PriorityMedium, DefaultTimeout: 5 * time.Minute, Serial: true,
	})
	reg.Register(registry.Entry{
		Operation: "artifact_delete_folder", Fn: e.DeleteFolder,
		DefaultPriority: types.PriorityHigh, DefaultTimeout: 5 * time.Minute, Serial: true,
	})
}
