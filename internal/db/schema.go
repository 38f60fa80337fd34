package db

// schemaSQL contains the database schema initialization SQL.
// The single %d verb is the embedding dimension for the HNSW index.
const schemaSQL = `
    -- ==========================================================================
    -- EPISODE TABLE (ingestion queue)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS episode SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS workspace_id ON episode TYPE string;
    DEFINE FIELD IF NOT EXISTS user_id ON episode TYPE string;
    DEFINE FIELD IF NOT EXISTS title ON episode TYPE string DEFAULT '';
    DEFINE FIELD IF NOT EXISTS body ON episode TYPE string;
    DEFINE FIELD IF NOT EXISTS session_id ON episode TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS label_ids ON episode TYPE array<string> DEFAULT [];
    DEFINE FIELD IF NOT EXISTS metadata ON episode TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS created_at ON episode TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS episode_workspace ON episode FIELDS workspace_id;
    DEFINE INDEX IF NOT EXISTS episode_session ON episode FIELDS session_id;

    -- ==========================================================================
    -- DOCUMENT TABLE (session-level label source of truth)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS document SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS workspace_id ON document TYPE string;
    DEFINE FIELD IF NOT EXISTS session_id ON document TYPE string;
    DEFINE FIELD IF NOT EXISTS title ON document TYPE string DEFAULT '';
    DEFINE FIELD IF NOT EXISTS label_ids ON document TYPE array<string> DEFAULT [];
    DEFINE FIELD IF NOT EXISTS created_at ON document TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS document_session ON document FIELDS workspace_id, session_id UNIQUE;

    -- ==========================================================================
    -- LABEL TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS label SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS name ON label TYPE string ASSERT string::len($value) <= 100;
    DEFINE FIELD IF NOT EXISTS description ON label TYPE string DEFAULT '';
    DEFINE FIELD IF NOT EXISTS workspace_id ON label TYPE string;
    DEFINE FIELD IF NOT EXISTS color ON label TYPE string;
    DEFINE FIELD IF NOT EXISTS created_at ON label TYPE datetime DEFAULT time::now();

    -- Case-sensitive name uniqueness per workspace. Near-duplicate names
    -- are handled at assignment time via embedding similarity.
    DEFINE INDEX IF NOT EXISTS label_name_unique ON label FIELDS workspace_id, name UNIQUE;
    DEFINE INDEX IF NOT EXISTS label_workspace ON label FIELDS workspace_id;

    -- ==========================================================================
    -- SPACE TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS space SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS name ON space TYPE string;
    DEFINE FIELD IF NOT EXISTS description ON space TYPE string DEFAULT '';
    DEFINE FIELD IF NOT EXISTS workspace_id ON space TYPE string;
    DEFINE FIELD IF NOT EXISTS owner_id ON space TYPE string;
    DEFINE FIELD IF NOT EXISTS episode_count ON space TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS created_at ON space TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS space_workspace ON space FIELDS workspace_id;

    -- ==========================================================================
    -- EMBEDDING TABLE (namespaced vector index)
    -- ==========================================================================
    -- One row per embedded object, keyed by the object's id. The namespace
    -- field partitions the index so cross-entity-type matches are impossible.
    DEFINE TABLE IF NOT EXISTS embedding SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS namespace ON embedding TYPE string;
    DEFINE FIELD IF NOT EXISTS vector ON embedding TYPE array<float>;
    DEFINE FIELD IF NOT EXISTS content ON embedding TYPE string DEFAULT '';
    DEFINE FIELD IF NOT EXISTS metadata ON embedding TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS created_at ON embedding TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS embedding_namespace ON embedding FIELDS namespace;
    DEFINE INDEX IF NOT EXISTS embedding_vector ON embedding FIELDS vector HNSW DIMENSION %d DIST COSINE TYPE F32;
`
