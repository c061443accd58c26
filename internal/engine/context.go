package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/CryptoRabble/glanker/internal/farcaster"
	"github.com/CryptoRabble/glanker/pkg/kv"
	"github.com/CryptoRabble/glanker/pkg/logging"
)

var (
	// ErrPfpAlreadyMinted means the user already has their one profile
	// picture token.
	ErrPfpAlreadyMinted = errors.New("pfp token already minted")
	// ErrNoProfilePicture means a pfp request came from a user with no
	// profile picture set.
	ErrNoProfilePicture = errors.New("no profile picture")
)

// SubjectKind says what the generation should be themed on.
type SubjectKind string

const (
	SubjectSelfHistory   SubjectKind = "self_history"
	SubjectTaggedUser    SubjectKind = "tagged_user"
	SubjectParentPost    SubjectKind = "parent_post"
	SubjectAttachedImage SubjectKind = "attached_image"
)

// Subject is the resolved input for generation. Computed fresh per event,
// never persisted.
type Subject struct {
	Kind  SubjectKind
	Texts []string

	// Image fields, set when Kind is AttachedImage.
	ImageURL      string
	ImageOwnerFID int64
	// ImageOwnerUsername is set when the image came from someone other
	// than the requester.
	ImageOwnerUsername string
	IsPfp              bool

	// TaggedUsername is set when Kind is TaggedUser.
	TaggedUsername string
	TaggedFID      int64

	// SingleCast means the texts are one referenced post rather than a
	// post history, which changes how generation treats them.
	SingleCast bool
}

var pfpPhrases = []string{
	"my pfp",
	"my profile pic",
	"my profile picture",
	"my profile image",
	"profile pic token",
	"profile picture token",
	"profile imagetoken",
	"pfp token",
}

var backReferencePhrases = []string{
	"this cast",
	"above cast",
	"parent cast",
	"previous cast",
	"that cast",
	"this post",
	"above post",
	"parent post",
	"previous post",
	"that post",
	"the post",
	"his cast",
	"her cast",
	"their cast",
	"his post",
	"her post",
	"their post",
}

func isPfpIntent(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range pfpPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func isImageIntent(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "image") || strings.Contains(lower, "picture")
}

func isBackReference(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range backReferencePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// findImageEmbed returns the first embed that looks like an image, either
// by fetched content type or by URL shape for hosts that serve images
// without metadata.
func findImageEmbed(embeds []farcaster.Embed) (*farcaster.Embed, bool) {
	for i := range embeds {
		e := &embeds[i]
		if e.Metadata != nil && strings.HasPrefix(e.Metadata.ContentType, "image/") {
			return e, true
		}
		if e.URL == "" {
			continue
		}
		if strings.Contains(e.URL, "imagedelivery.net") ||
			strings.HasSuffix(e.URL, ".jpg") ||
			strings.HasSuffix(e.URL, ".jpeg") ||
			strings.HasSuffix(e.URL, ".png") ||
			strings.HasSuffix(e.URL, ".gif") {
			return e, true
		}
	}
	return nil, false
}

// SubjectFetcher fetches the external content a subject is built from.
type SubjectFetcher interface {
	FetchRecentCasts(ctx context.Context, fid int64, limit int) ([]farcaster.Cast, error)
	LookupCast(ctx context.Context, hash string) (*farcaster.Cast, error)
}

// ResolverConfig tunes subject resolution.
type ResolverConfig struct {
	BotFID      int64
	BotUsername string
	// BlendRequesterHistory mixes the requester's own history into a
	// parent-post subject when the reply doesn't explicitly reference
	// the parent.
	BlendRequesterHistory bool
	HistoryLimit          int
}

// ContextResolver turns an authorized cast into a GenerationSubject.
type ContextResolver struct {
	cfg     ResolverConfig
	store   kv.Store
	fetcher SubjectFetcher
	logger  logging.Logger
	now     func() time.Time
}

func NewContextResolver(cfg ResolverConfig, store kv.Store, fetcher SubjectFetcher, logger logging.Logger) *ContextResolver {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 15
	}
	return &ContextResolver{
		cfg:     cfg,
		store:   store,
		fetcher: fetcher,
		logger:  logger,
		now:     time.Now,
	}
}

type pfpRecord struct {
	CastURL   string `json:"castUrl"`
	Hash      string `json:"hash"`
	Timestamp int64  `json:"timestamp"`
}

func pfpKey(username string) string {
	return username + ":pfp"
}

// Resolve walks the decision order: pfp request, attached image, image
// intent with a parent image, tagged user, parent post, own history.
func (r *ContextResolver) Resolve(ctx context.Context, cast *farcaster.Cast) (*Subject, error) {
	if isPfpIntent(cast.Text) {
		return r.resolvePfp(ctx, cast)
	}

	if embed, ok := findImageEmbed(cast.Embeds); ok {
		return &Subject{
			Kind:          SubjectAttachedImage,
			ImageURL:      embed.URL,
			ImageOwnerFID: cast.Author.FID,
		}, nil
	}

	if isImageIntent(cast.Text) && cast.ParentHash != "" {
		if subject, ok := r.promoteParentImage(ctx, cast); ok {
			return subject, nil
		}
	}

	if tagged := r.firstTaggedUser(cast); tagged != nil {
		texts, err := r.fetchHistory(ctx, tagged.FID)
		if err != nil {
			return nil, fmt.Errorf("%w: tagged user %d history: %v", ErrNoSubject, tagged.FID, err)
		}
		return &Subject{
			Kind:           SubjectTaggedUser,
			Texts:          texts,
			TaggedUsername: tagged.Username,
			TaggedFID:      tagged.FID,
		}, nil
	}

	if cast.ParentHash != "" {
		if subject, ok := r.resolveParent(ctx, cast); ok {
			return subject, nil
		}
		// Parent fetch failed, fall back to the requester's history.
	}

	texts, err := r.fetchHistory(ctx, cast.Author.FID)
	if err != nil {
		return nil, fmt.Errorf("%w: author %d history: %v", ErrNoSubject, cast.Author.FID, err)
	}
	return &Subject{Kind: SubjectSelfHistory, Texts: texts}, nil
}

func (r *ContextResolver) resolvePfp(ctx context.Context, cast *farcaster.Cast) (*Subject, error) {
	username := cast.Author.Username
	_, exists, err := r.store.Get(ctx, pfpKey(username))
	if err != nil {
		return nil, fmt.Errorf("checking pfp record for %s: %w", username, err)
	}
	if exists {
		return nil, ErrPfpAlreadyMinted
	}
	if cast.Author.PfpURL == "" {
		return nil, ErrNoProfilePicture
	}

	record, err := json.Marshal(pfpRecord{
		CastURL:   fmt.Sprintf("https://warpcast.com/%s/%s", username, cast.Hash),
		Hash:      cast.Hash,
		Timestamp: r.now().UnixMilli(),
	})
	if err != nil {
		return nil, err
	}
	if err := r.store.Set(ctx, pfpKey(username), string(record), kv.NoExpiry); err != nil {
		return nil, fmt.Errorf("persisting pfp record for %s: %w", username, err)
	}

	return &Subject{
		Kind:          SubjectAttachedImage,
		ImageURL:      cast.Author.PfpURL,
		ImageOwnerFID: cast.Author.FID,
		IsPfp:         true,
	}, nil
}

// ClearPfpFlag releases the one-per-user pfp record so the user can retry
// after a failed generation.
func (r *ContextResolver) ClearPfpFlag(ctx context.Context, username string) error {
	return r.store.Delete(ctx, pfpKey(username))
}

func (r *ContextResolver) promoteParentImage(ctx context.Context, cast *farcaster.Cast) (*Subject, bool) {
	parent, err := r.fetcher.LookupCast(ctx, cast.ParentHash)
	if err != nil {
		r.logger.WithError(err).WithField("parent_hash", cast.ParentHash).Warn("Failed to fetch parent while looking for an image")
		return nil, false
	}
	embed, ok := findImageEmbed(parent.Embeds)
	if !ok {
		return nil, false
	}
	subject := &Subject{
		Kind:          SubjectAttachedImage,
		ImageURL:      embed.URL,
		ImageOwnerFID: parent.Author.FID,
	}
	if parent.Author.FID != cast.Author.FID {
		subject.ImageOwnerUsername = parent.Author.Username
	}
	return subject, true
}

func (r *ContextResolver) firstTaggedUser(cast *farcaster.Cast) *farcaster.User {
	for i := range cast.MentionedProfiles {
		if cast.MentionedProfiles[i].FID != r.cfg.BotFID {
			return &cast.MentionedProfiles[i]
		}
	}
	return nil
}

func (r *ContextResolver) resolveParent(ctx context.Context, cast *farcaster.Cast) (*Subject, bool) {
	parent, err := r.fetcher.LookupCast(ctx, cast.ParentHash)
	if err != nil {
		r.logger.WithError(err).WithField("parent_hash", cast.ParentHash).Warn("Failed to fetch parent cast, falling back to author history")
		return nil, false
	}

	subject := &Subject{
		Kind:  SubjectParentPost,
		Texts: []string{parent.Text},
	}
	if isBackReference(cast.Text) {
		subject.SingleCast = true
		return subject, true
	}
	if r.cfg.BlendRequesterHistory {
		history, err := r.fetchHistory(ctx, cast.Author.FID)
		if err != nil {
			r.logger.WithError(err).WithField("author_fid", cast.Author.FID).Warn("Failed to blend author history into parent subject")
		} else {
			subject.Texts = append(subject.Texts, history...)
		}
	}
	return subject, true
}

func (r *ContextResolver) fetchHistory(ctx context.Context, fid int64) ([]string, error) {
	casts, err := r.fetcher.FetchRecentCasts(ctx, fid, r.cfg.HistoryLimit)
	if err != nil {
		return nil, err
	}
	texts := make([]string, 0, len(casts))
	for _, c := range casts {
		if c.Author.Username == r.cfg.BotUsername {
			continue
		}
		if c.Text != "" {
			texts = append(texts, c.Text)
		}
	}
	return texts, nil
}
