package embedded

import (
	"github.com/LerianStudio/midaz-flow/internal/checkpoint"
	"github.com/LerianStudio/midaz-flow/internal/store"
)

var (
	_ store.EventStore    = (*Store)(nil)
	_ store.SnapshotStore = (*Store)(nil)
	_ checkpoint.Store    = (*CheckpointStore)(nil)
)
