package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/CryptoRabble/glanker/internal/farcaster"
	"github.com/CryptoRabble/glanker/internal/imagesearch"
	"github.com/CryptoRabble/glanker/pkg/logging"
)

// TokenDetails is a generated token name and ticker.
type TokenDetails struct {
	Name   string
	Ticker string
}

// Generator produces token details, persona replies, and a matching image
// for a resolved subject.
type Generator interface {
	PersonaReply(ctx context.Context, contextText string) (string, error)
	TokenFromTexts(ctx context.Context, texts []string, singleCast bool) (TokenDetails, error)
	TokenFromImage(ctx context.Context, imageURL string) (TokenDetails, error)
	// FindImage returns an image URL for the token name, falling back to
	// a stock image when nothing suitable turns up.
	FindImage(ctx context.Context, name string) string
}

// Publisher posts replies back to the network.
type Publisher interface {
	PublishCast(ctx context.Context, pub farcaster.PublishRequest) (string, error)
}

// UserFetcher looks up a user profile, used for the trust score gate.
type UserFetcher interface {
	FetchUser(ctx context.Context, fid int64) (*farcaster.User, error)
}

// CompletionHandler receives deployment confirmations reported back by
// the deployer, carrying the deployed token address.
type CompletionHandler interface {
	HandleDeployment(ctx context.Context, cast *farcaster.Cast, tokenAddress string, positionID uint64) error
}

// PipelineConfig identifies the bot and sets the quality gate.
type PipelineConfig struct {
	BotFID       int64
	BotUsername  string
	MinUserScore float64
}

// Pipeline runs an inbound event through dedup, authorization, the trust
// gate, rate limiting, context resolution, generation, and publication.
type Pipeline struct {
	cfg         PipelineConfig
	dedupe      *Deduplicator
	auth        *Authorizer
	limiter     *RateLimiter
	resolver    *ContextResolver
	users       UserFetcher
	casts       CastLookup
	gen         Generator
	publisher   Publisher
	completions CompletionHandler
	logger      logging.Logger
}

func NewPipeline(
	cfg PipelineConfig,
	dedupe *Deduplicator,
	auth *Authorizer,
	limiter *RateLimiter,
	resolver *ContextResolver,
	users UserFetcher,
	casts CastLookup,
	gen Generator,
	publisher Publisher,
	completions CompletionHandler,
	logger logging.Logger,
) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		dedupe:      dedupe,
		auth:        auth,
		limiter:     limiter,
		resolver:    resolver,
		users:       users,
		casts:       casts,
		gen:         gen,
		publisher:   publisher,
		completions: completions,
		logger:      logger,
	}
}

// Process handles one webhook delivery. A non-nil error means an internal
// failure the caller should surface as a server error; every other
// outcome is acknowledged as success so the provider does not redeliver.
func (p *Pipeline) Process(ctx context.Context, ev *farcaster.WebhookEvent) (Outcome, error) {
	if ev.Type != "cast.created" {
		return OutcomeIgnored, nil
	}
	cast := &ev.Data

	log := p.logger.WithFields(logging.Fields{
		"event_id":   cast.Hash,
		"author_fid": cast.Author.FID,
	})

	first, err := p.dedupe.MarkProcessed(ctx, cast.Hash)
	if err != nil {
		return OutcomeError, fmt.Errorf("deduplicating event: %w", err)
	}
	if !first {
		log.Info("Duplicate delivery, already processed")
		return OutcomeDuplicate, nil
	}

	decision := p.auth.Authorize(ctx, cast)
	if !decision.Authorized {
		log.WithField("rule", decision.Rule).Info("Unauthorized interaction, ignoring")
		return OutcomeUnauthorized, nil
	}

	if decision.TokenAddress != "" {
		return p.handleCompletion(ctx, cast, decision, log)
	}

	outcome, err := p.handleMention(ctx, cast, log)
	if err != nil {
		log.WithError(err).Error("Mention handling failed")
		p.publishApology(ctx, cast.Hash, log)
		return OutcomeError, err
	}
	return outcome, nil
}

func (p *Pipeline) handleCompletion(ctx context.Context, cast *farcaster.Cast, decision Decision, log *logrus.Entry) (Outcome, error) {
	log = log.WithField("token_address", decision.TokenAddress)
	if p.completions == nil {
		log.Info("Deployment confirmed, no completion handler configured")
		return OutcomeCompletion, nil
	}
	if err := p.completions.HandleDeployment(ctx, cast, decision.TokenAddress, decision.PositionID); err != nil {
		// The deployment itself succeeded, so this is logged rather than
		// surfaced to the provider as a failure.
		log.WithError(err).Error("Completion handler failed")
	}
	return OutcomeCompletion, nil
}

func (p *Pipeline) handleMention(ctx context.Context, cast *farcaster.Cast, log *logrus.Entry) (Outcome, error) {
	persona, err := p.personaReply(ctx, cast)
	if err != nil {
		return OutcomeError, fmt.Errorf("generating persona reply: %w", err)
	}

	user, err := p.users.FetchUser(ctx, cast.Author.FID)
	if err != nil {
		return OutcomeError, fmt.Errorf("fetching author profile: %w", err)
	}
	if user.Score() < p.cfg.MinUserScore {
		log.WithField("score", user.Score()).Info("Author below score threshold")
		if err := p.publish(ctx, cast.Hash, persona+msgLowScore, ""); err != nil {
			return OutcomeError, err
		}
		return OutcomeLowScore, nil
	}

	// Profile picture requests are governed by the permanent one-per-user
	// flag instead of the rolling quota.
	if !isPfpIntent(cast.Text) {
		allowed, err := p.limiter.Allow(ctx, cast.Author.FID)
		if err != nil {
			return OutcomeError, err
		}
		if !allowed {
			log.Info("Rate limited")
			if err := p.publish(ctx, cast.Hash, persona+msgCooldown, ""); err != nil {
				return OutcomeError, err
			}
			return OutcomeRateLimited, nil
		}
		if err := p.limiter.Commit(ctx, cast.Author.FID); err != nil {
			return OutcomeError, err
		}
	}

	subject, err := p.resolver.Resolve(ctx, cast)
	if err != nil {
		switch {
		case errors.Is(err, ErrPfpAlreadyMinted):
			if err := p.publish(ctx, cast.Hash, msgPfpRepeat, ""); err != nil {
				return OutcomeError, err
			}
			return OutcomePfpRepeat, nil
		case errors.Is(err, ErrNoProfilePicture):
			if err := p.publish(ctx, cast.Hash, msgNoPfp, ""); err != nil {
				return OutcomeError, err
			}
			return OutcomeReplied, nil
		default:
			return OutcomeError, err
		}
	}

	log.WithField("subject", string(subject.Kind)).Info("Resolved generation subject")

	message, imageURL, err := p.generate(ctx, cast, subject, persona)
	if err != nil {
		return OutcomeError, err
	}
	if message == "" {
		// Generation already replied (pfp analysis failure path).
		return OutcomeReplied, nil
	}

	if err := p.publish(ctx, cast.Hash, message, imageURL); err != nil {
		return OutcomeError, err
	}
	return OutcomeReplied, nil
}

// generate turns a subject into the reply message and image. An empty
// message with a nil error means a terminal reply was already sent.
func (p *Pipeline) generate(ctx context.Context, cast *farcaster.Cast, subject *Subject, persona string) (string, string, error) {
	if subject.Kind == SubjectAttachedImage {
		details, err := p.gen.TokenFromImage(ctx, subject.ImageURL)
		if err == nil {
			switch {
			case subject.IsPfp:
				return pfpTokenMessage(details.Name, details.Ticker), subject.ImageURL, nil
			case subject.ImageOwnerUsername != "":
				return otherImageMessage(subject.ImageOwnerUsername, details.Name, details.Ticker), subject.ImageURL, nil
			default:
				return ownImageMessage(details.Name, details.Ticker), subject.ImageURL, nil
			}
		}

		p.logger.WithError(err).Warn("Image analysis failed")
		if subject.IsPfp {
			if derr := p.resolver.ClearPfpFlag(ctx, cast.Author.Username); derr != nil {
				p.logger.WithError(derr).Warn("Failed to clear pfp flag")
			}
			if perr := p.publish(ctx, cast.Hash, msgPfpFailed, ""); perr != nil {
				return "", "", perr
			}
			return "", "", nil
		}

		// Fall back to text generation from the author's history.
		texts, herr := p.resolver.fetchHistory(ctx, cast.Author.FID)
		if herr != nil {
			return "", "", fmt.Errorf("%w: author %d history: %v", ErrNoSubject, cast.Author.FID, herr)
		}
		subject = &Subject{Kind: SubjectSelfHistory, Texts: texts}
	}

	details, err := p.gen.TokenFromTexts(ctx, subject.Texts, subject.SingleCast)
	if err != nil {
		return "", "", fmt.Errorf("generating token details: %w", err)
	}
	imageURL := p.gen.FindImage(ctx, details.Name)

	switch subject.Kind {
	case SubjectTaggedUser:
		return taggedUserMessage(subject.TaggedUsername, details.Name, details.Ticker), imageURL, nil
	case SubjectParentPost:
		if subject.SingleCast {
			return parentPostMessage(details.Name, details.Ticker), imageURL, nil
		}
		return selfHistoryMessage(persona, details.Name, details.Ticker), imageURL, nil
	default:
		return selfHistoryMessage(persona, details.Name, details.Ticker), imageURL, nil
	}
}

// personaReply produces the in-character lead-in when the mention carries
// its own text, with the parent cast as conversational context if there
// is one. Returns "" when the mention is bare.
func (p *Pipeline) personaReply(ctx context.Context, cast *farcaster.Cast) (string, error) {
	mentionText := strings.TrimSpace(strings.ReplaceAll(cast.Text, "@"+p.cfg.BotUsername, ""))
	if mentionText == "" {
		return "", nil
	}

	contextText := mentionText
	if cast.ParentHash != "" && p.casts != nil {
		parent, err := p.casts.LookupCast(ctx, cast.ParentHash)
		if err != nil {
			p.logger.WithError(err).WithField("parent_hash", cast.ParentHash).Warn("Failed to fetch parent for persona context")
		} else {
			contextText = fmt.Sprintf("Original cast: %q\nResponse: %q", parent.Text, mentionText)
		}
	}

	reply, err := p.gen.PersonaReply(ctx, contextText)
	if err != nil {
		return "", err
	}
	return reply + "\n\n", nil
}

func (p *Pipeline) publish(ctx context.Context, parentHash, message, imageURL string) error {
	pub := farcaster.PublishRequest{
		Text:       message,
		ParentHash: parentHash,
	}
	if imageURL != "" {
		formatted := imagesearch.NormalizeGiphyURL(imageURL)
		pub.Text = message + "\n\n" + formatted
		pub.EmbedURLs = []string{formatted}
	}
	if _, err := p.publisher.PublishCast(ctx, pub); err != nil {
		return fmt.Errorf("publishing reply: %w", err)
	}
	return nil
}

func (p *Pipeline) publishApology(ctx context.Context, parentHash string, log *logrus.Entry) {
	if err := p.publish(ctx, parentHash, msgApology, ""); err != nil {
		log.WithError(err).Error("Failed to send apology reply")
	}
}
