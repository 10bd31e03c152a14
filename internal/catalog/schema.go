package catalog

// Schema DDL. The catalog is derived data: every table can be dropped and
// rebuilt from the image tree.
const (
	createInfo = `CREATE TABLE IF NOT EXISTS catalog_info (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);`

	createEntities = `CREATE TABLE IF NOT EXISTS entities (
    entity_id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    category TEXT NOT NULL,
    type TEXT NOT NULL,
    subtype TEXT NOT NULL,
    name TEXT NOT NULL,
    path TEXT NOT NULL UNIQUE,
    variant_count INTEGER NOT NULL,
    pose_count INTEGER NOT NULL
);`

	createVariants = `CREATE TABLE IF NOT EXISTS variants (
    variant_id TEXT PRIMARY KEY,
    entity_id TEXT NOT NULL,
    variant TEXT NOT NULL,
    has_metadata INTEGER NOT NULL,
    path TEXT NOT NULL,
    FOREIGN KEY (entity_id) REFERENCES entities(entity_id) ON DELETE CASCADE
);`

	createPoses = `CREATE TABLE IF NOT EXISTS poses (
    pose_id TEXT PRIMARY KEY,
    variant_id TEXT NOT NULL,
    number INTEGER NOT NULL,
    image_type TEXT NOT NULL,
    path TEXT NOT NULL,
    size INTEGER NOT NULL,
    created_at TEXT NOT NULL,
    FOREIGN KEY (variant_id) REFERENCES variants(variant_id) ON DELETE CASCADE
);`
)

// Index DDL for search and lookup.
const (
	idxEntitiesName   = `CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(name);`
	idxEntitiesClass  = `CREATE INDEX IF NOT EXISTS idx_entities_class ON entities(kind, category, type, subtype);`
	idxVariantsEntity = `CREATE INDEX IF NOT EXISTS idx_variants_entity ON variants(entity_id);`
	idxPosesVariant   = `CREATE INDEX IF NOT EXISTS idx_poses_variant ON poses(variant_id);`
	idxPosesImageType = `CREATE INDEX IF NOT EXISTS idx_poses_image_type ON poses(image_type);`
)

// schemaDDL lists all statements in dependency order.
var schemaDDL = []string{
	createInfo,
	createEntities,
	createVariants,
	createPoses,
	idxEntitiesName,
	idxEntitiesClass,
	idxVariantsEntity,
	idxPosesVariant,
	idxPosesImageType,
}

// Keys stored in catalog_info.
const (
	infoRoot      = "root"
	infoScheme    = "scheme"
	infoIndexedAt = "indexed_at"
)
