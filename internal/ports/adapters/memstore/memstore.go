// Package memstore is an in-memory Repository. Every read and write goes
// through a deep copy, so callers never share state with the store.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/forPelevin/clipforge/internal/apperr"
	"github.com/forPelevin/clipforge/internal/types"
)

type clipRow struct {
	clip *types.Clip
	seq  int64
}

type Store struct {
	mu          sync.Mutex
	videos      map[string]*types.Video
	clips       map[string]clipRow
	transcripts map[string]types.Transcript
	seq         int64
}

func New() *Store {
	return &Store{
		videos:      map[string]*types.Video{},
		clips:       map[string]clipRow{},
		transcripts: map[string]types.Transcript{},
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) CreateVideo(_ context.Context, v *types.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.videos[v.ID]; ok {
		return apperr.New(apperr.ErrInvalidInput, "video %s already exists", v.ID)
	}
	s.videos[v.ID] = v.Clone()
	return nil
}

func (s *Store) GetVideo(_ context.Context, id string) (*types.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return nil, apperr.New(apperr.ErrNotFound, "video %s not found", id)
	}
	return v.Clone(), nil
}

func (s *Store) UpdateVideo(_ context.Context, id string, fn func(v *types.Video) error) (*types.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.videos[id]
	if !ok {
		return nil, apperr.New(apperr.ErrNotFound, "video %s not found", id)
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = id
	s.videos[id] = next
	return next.Clone(), nil
}

func (s *Store) InsertClips(_ context.Context, clips []*types.Clip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range clips {
		if _, ok := s.clips[c.ID]; ok {
			return apperr.New(apperr.ErrInvalidInput, "clip %s already exists", c.ID)
		}
	}
	s.insertLocked(clips)
	return nil
}

func (s *Store) ReplaceClips(_ context.Context, videoID string, clips []*types.Clip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, row := range s.clips {
		if row.clip.VideoID == videoID {
			delete(s.clips, id)
		}
	}
	s.insertLocked(clips)
	return nil
}

func (s *Store) insertLocked(clips []*types.Clip) {
	for _, c := range clips {
		s.seq++
		s.clips[c.ID] = clipRow{clip: c.Clone(), seq: s.seq}
	}
}

func (s *Store) GetClip(_ context.Context, id string) (*types.Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.clips[id]
	if !ok {
		return nil, apperr.New(apperr.ErrNotFound, "clip %s not found", id)
	}
	return row.clip.Clone(), nil
}

func (s *Store) ListClips(_ context.Context, videoID string) ([]*types.Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]clipRow, 0)
	for _, row := range s.clips {
		if row.clip.VideoID == videoID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].clip.ViralityScore != rows[j].clip.ViralityScore {
			return rows[i].clip.ViralityScore > rows[j].clip.ViralityScore
		}
		return rows[i].seq < rows[j].seq
	})
	out := make([]*types.Clip, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.clip.Clone())
	}
	return out, nil
}

func (s *Store) UpdateClip(_ context.Context, id string, fn func(c *types.Clip) error) (*types.Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.clips[id]
	if !ok {
		return nil, apperr.New(apperr.ErrNotFound, "clip %s not found", id)
	}
	next := row.clip.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = id
	s.clips[id] = clipRow{clip: next, seq: row.seq}
	return next.Clone(), nil
}

func (s *Store) SaveTranscript(_ context.Context, videoID string, tr types.Transcript) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.videos[videoID]; !ok {
		return apperr.New(apperr.ErrNotFound, "video %s not found", videoID)
	}
	s.transcripts[videoID] = tr.Clone()
	return nil
}

func (s *Store) GetTranscript(_ context.Context, videoID string) (*types.Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tr, ok := s.transcripts[videoID]
	if !ok {
		return nil, nil
	}
	out := tr.Clone()
	return &out, nil
}
