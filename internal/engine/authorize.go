package engine

import (
	"context"
	"regexp"

	"github.com/CryptoRabble/glanker/internal/farcaster"
	"github.com/CryptoRabble/glanker/pkg/logging"
)

// tokenURLPattern matches a deployment confirmation link and captures the
// deployed token's contract address.
var tokenURLPattern = regexp.MustCompile(`https://clanker\.world/clanker/(0x[a-fA-F0-9]{40})`)

// Decision is the result of running the authorization rules over a cast.
type Decision struct {
	Authorized bool
	// Rule names which rule granted or denied access, for logging.
	Rule string
	// TokenAddress and PositionID are only set on the deployer
	// completion path.
	TokenAddress string
	PositionID   uint64
}

// ChainRegistry resolves the LP position id for a deployed token. The
// lookup is optional, authorization succeeds without it.
type ChainRegistry interface {
	PositionID(ctx context.Context, tokenAddress string) (uint64, error)
}

// AuthorizerConfig identifies the bot and the token deployer it
// collaborates with.
type AuthorizerConfig struct {
	BotFID      int64
	DeployerFID int64
	// AllowDeployerReplies authorizes the deployer replying directly to
	// one of the bot's casts even without a deployment link. Off in most
	// deployments.
	AllowDeployerReplies bool
}

// CastLookup fetches a cast by hash, used by the deployer-reply rule to
// check who authored the parent.
type CastLookup interface {
	LookupCast(ctx context.Context, hash string) (*farcaster.Cast, error)
}

// Authorizer decides whether an inbound cast may trigger the pipeline.
// Rules run in a fixed order and the first match wins.
type Authorizer struct {
	cfg      AuthorizerConfig
	registry ChainRegistry
	casts    CastLookup
	logger   logging.Logger
	rules    []authRule
}

type authRule struct {
	name    string
	applies func(ctx context.Context, cast *farcaster.Cast) bool
	decide  func(ctx context.Context, cast *farcaster.Cast) Decision
}

func NewAuthorizer(cfg AuthorizerConfig, registry ChainRegistry, casts CastLookup, logger logging.Logger) *Authorizer {
	a := &Authorizer{
		cfg:      cfg,
		registry: registry,
		casts:    casts,
		logger:   logger,
	}

	a.rules = []authRule{
		{
			name:    "deployer_completion",
			applies: a.isDeployerWithToken,
			decide:  a.decideDeployerCompletion,
		},
	}
	if cfg.AllowDeployerReplies {
		a.rules = append(a.rules, authRule{
			name:    "deployer_reply",
			applies: a.isDeployerReplyToBot,
			decide: func(ctx context.Context, cast *farcaster.Cast) Decision {
				return Decision{Authorized: true, Rule: "deployer_reply"}
			},
		})
	}
	a.rules = append(a.rules,
		authRule{
			name: "deployer_silence",
			applies: func(ctx context.Context, cast *farcaster.Cast) bool {
				return cast.Author.FID == cfg.DeployerFID
			},
			decide: func(ctx context.Context, cast *farcaster.Cast) Decision {
				return Decision{Authorized: false, Rule: "deployer_silence"}
			},
		},
		authRule{
			name:    "direct_mention",
			applies: a.isBotMentioned,
			decide: func(ctx context.Context, cast *farcaster.Cast) Decision {
				return Decision{Authorized: true, Rule: "direct_mention"}
			},
		},
	)

	return a
}

// Authorize runs the rule chain. Casts matching no rule are unauthorized.
func (a *Authorizer) Authorize(ctx context.Context, cast *farcaster.Cast) Decision {
	for _, rule := range a.rules {
		if rule.applies(ctx, cast) {
			return rule.decide(ctx, cast)
		}
	}
	return Decision{Authorized: false, Rule: "no_match"}
}

func (a *Authorizer) isDeployerWithToken(ctx context.Context, cast *farcaster.Cast) bool {
	if cast.Author.FID != a.cfg.DeployerFID {
		return false
	}
	return extractTokenAddress(cast) != ""
}

func (a *Authorizer) decideDeployerCompletion(ctx context.Context, cast *farcaster.Cast) Decision {
	addr := extractTokenAddress(cast)
	decision := Decision{
		Authorized:   true,
		Rule:         "deployer_completion",
		TokenAddress: addr,
	}
	if a.registry != nil {
		positionID, err := a.registry.PositionID(ctx, addr)
		if err != nil {
			a.logger.WithError(err).WithField("token_address", addr).Warn("Failed to resolve LP position id")
		} else {
			decision.PositionID = positionID
		}
	}
	return decision
}

func (a *Authorizer) isDeployerReplyToBot(ctx context.Context, cast *farcaster.Cast) bool {
	if cast.Author.FID != a.cfg.DeployerFID || cast.ParentHash == "" || a.casts == nil {
		return false
	}
	parent, err := a.casts.LookupCast(ctx, cast.ParentHash)
	if err != nil {
		a.logger.WithError(err).WithField("parent_hash", cast.ParentHash).Warn("Failed to fetch parent for deployer reply check")
		return false
	}
	return parent.Author.FID == a.cfg.BotFID
}

func (a *Authorizer) isBotMentioned(ctx context.Context, cast *farcaster.Cast) bool {
	for _, profile := range cast.MentionedProfiles {
		if profile.FID == a.cfg.BotFID {
			return true
		}
	}
	return false
}

// extractTokenAddress pulls the deployed token address from the cast text
// or, failing that, from the first embed URL that carries one. Text wins
// when both match.
func extractTokenAddress(cast *farcaster.Cast) string {
	if m := tokenURLPattern.FindStringSubmatch(cast.Text); m != nil {
		return m[1]
	}
	for _, embed := range cast.Embeds {
		if m := tokenURLPattern.FindStringSubmatch(embed.URL); m != nil {
			return m[1]
		}
	}
	return ""
}
