package catalog

import "errors"

// Sentinel errors returned by catalog operations. Callers match them with
// errors.Is; wrapped variants carry the offending name or path for logs
// and response messages.
var (
	// ErrManufacturerNotFound indicates the named manufacturer directory
	// does not exist in the catalog.
	ErrManufacturerNotFound = errors.New("catalog: manufacturer not found")

	// ErrManufacturerExists indicates a create targeted a manufacturer
	// that already exists.
	ErrManufacturerExists = errors.New("catalog: manufacturer already exists")

	// ErrDeviceNotFound indicates no indexed device carries the
	// requested name.
	ErrDeviceNotFound = errors.New("catalog: device not found")

	// ErrDeviceExists indicates a create targeted a device name that is
	// already indexed.
	ErrDeviceExists = errors.New("catalog: device already exists")

	// ErrCollectionNotFound indicates the device document has no
	// collection under the requested name.
	ErrCollectionNotFound = errors.New("catalog: collection not found")

	// ErrCollectionExists indicates a create or rename targeted a
	// collection name that is already present.
	ErrCollectionExists = errors.New("catalog: collection already exists")

	// ErrCollectionReadOnly indicates a mutation targeted a collection
	// whose metadata marks it read-only.
	ErrCollectionReadOnly = errors.New("catalog: collection is read-only")

	// ErrPresetNotFound indicates no preset in the collection carries
	// the requested name.
	ErrPresetNotFound = errors.New("catalog: preset not found")

	// ErrPresetExists indicates a create targeted a preset name already
	// present in the collection.
	ErrPresetExists = errors.New("catalog: preset already exists")

	// ErrInvalidName indicates a supplied name is empty, too long, or
	// loses every character during normalisation.
	ErrInvalidName = errors.New("catalog: invalid name")

	// ErrUnsafeName indicates a supplied name carries a traversal element
	// or resolves outside the catalog root and was rejected outright.
	ErrUnsafeName = errors.New("catalog: unsafe name")

	// ErrInvalidDocument indicates a document parsed as JSON but failed
	// schema validation, for example a device form without a name.
	ErrInvalidDocument = errors.New("catalog: invalid document")

	// ErrNotInitialised indicates an accessor or mutation ran before the
	// first scan populated the index.
	ErrNotInitialised = errors.New("catalog: engine not initialised")
)
