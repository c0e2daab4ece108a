// Package catalog provides the preset catalog engine for Patchbay Core.
//
// The catalog is a directory tree of JSON documents organised as
// manufacturer → device → preset collection → preset. The engine owns an
// in-memory index of that tree and the mutation operations that rewrite
// its backing documents.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                           catalog.Engine                          │
//	│                                                                   │
//	│  ┌──────────────┐   ┌───────────────┐   ┌───────────────────┐    │
//	│  │   Scanner    │   │ DocumentCache │   │   documentStore   │    │
//	│  │ (scanner.go) │──▶│  (cache.go)   │   │    (store.go)     │    │
//	│  │              │   │               │   │                   │    │
//	│  │ • two-level  │   │ • TTL memo    │   │ • direct reads    │    │
//	│  │   worker pool│   │ • never fails │   │ • atomic writes   │    │
//	│  │ • best-effort│   │ • Clear() only│   │ • per-path locks  │    │
//	│  └──────┬───────┘   └───────────────┘   └─────────▲─────────┘    │
//	│         │ Snapshot                                 │ mutations    │
//	│         ▼                                          │              │
//	│  ┌─────────────────────────────────────────────────┴─────────┐   │
//	│  │  read accessors (engine.go)   CRUD (manufacturers.go,     │   │
//	│  │                               devices.go, collections.go, │   │
//	│  │                               presets.go)                 │   │
//	│  └───────────────────────────────────────────────────────────┘   │
//	└──────────────────────────────────────────────────────────────────┘
//
// # On-disk layout
//
//	<root>/<manufacturer>/<device-dir>/<manufacturer>_<device>.json
//	<root>/<manufacturer>/<manufacturer>_<device>.json   (flat form, read only)
//	<root>/<manufacturer>/community/<folder>.json
//
// Device documents carry _metadata, device_info and preset_collections;
// community documents carry a bare presets array. Creates always write
// the nested form; the scanner reads both.
//
// # Consistency model
//
// Reads are served from a snapshot rebuilt wholesale on every rescan, so
// accessor results are internally consistent but may lag mutations made
// behind the engine's back until the next rescan (or the optional
// filesystem watcher triggers one). Mutations read the backing document
// directly from disk, modify it in memory and replace the file
// atomically, so a partially written document is never observable.
// Writers to the same document serialise through a per-path advisory
// lock; the engine offers no cross-process locking.
//
// # Usage
//
//	engine, err := catalog.New(catalog.Config{Root: "/srv/catalog"})
//	if err != nil {
//	    return err
//	}
//	engine.SetLogger(log)
//	if err := engine.Init(ctx); err != nil {
//	    return err
//	}
//	defer engine.Close()
//
//	path, err := engine.CreatePreset(ctx, "Sub 37", "factory_presets", catalog.PresetRequest{
//	    PresetName: "Growl Bass",
//	    PGM:        12,
//	})
package catalog
