package postgres

const schema = `
CREATE TABLE IF NOT EXISTS videos (
	id                TEXT PRIMARY KEY,
	company_id        TEXT NOT NULL DEFAULT '',
	source            TEXT NOT NULL,
	source_url        TEXT NOT NULL DEFAULT '',
	file_path         TEXT NOT NULL DEFAULT '',
	thumbnail_path    TEXT NOT NULL DEFAULT '',
	duration          DOUBLE PRECISION,
	status            TEXT NOT NULL,
	metadata          JSONB NOT NULL DEFAULT '{}'::jsonb,
	status_changed_at TIMESTAMPTZ NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS transcripts (
	video_id   TEXT PRIMARY KEY REFERENCES videos(id) ON DELETE CASCADE,
	segments   JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS clips (
	seq               BIGSERIAL,
	id                TEXT PRIMARY KEY,
	video_id          TEXT NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
	company_id        TEXT NOT NULL DEFAULT '',
	title             TEXT NOT NULL DEFAULT '',
	description       TEXT NOT NULL DEFAULT '',
	start_time        DOUBLE PRECISION NOT NULL,
	end_time          DOUBLE PRECISION NOT NULL,
	duration          DOUBLE PRECISION NOT NULL,
	virality_score    INTEGER NOT NULL DEFAULT 0,
	scores            JSONB NOT NULL DEFAULT '{}'::jsonb,
	transcript        TEXT NOT NULL DEFAULT '',
	words             JSONB NOT NULL DEFAULT '[]'::jsonb,
	suggested_caption TEXT NOT NULL DEFAULT '',
	caption_style     JSONB NOT NULL DEFAULT '{}'::jsonb,
	aspect_ratio      TEXT NOT NULL,
	status            TEXT NOT NULL,
	export_status     TEXT NOT NULL DEFAULT '',
	exported_path     TEXT NOT NULL DEFAULT '',
	source            TEXT NOT NULL,
	metadata          JSONB NOT NULL DEFAULT '{}'::jsonb,
	export_changed_at TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL,
	CHECK (start_time < end_time)
);

CREATE INDEX IF NOT EXISTS clips_video_rank_idx ON clips (video_id, virality_score DESC, seq);
`
