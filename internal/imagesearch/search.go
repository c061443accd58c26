package imagesearch

import (
	"context"
	"math/rand"

	"github.com/CryptoRabble/glanker/pkg/kv"
	"github.com/CryptoRabble/glanker/pkg/logging"
)

const bannedKeyPrefix = "banned_image:"

// defaultFallbackImages are served when neither provider has anything
// usable for the token name.
var defaultFallbackImages = []string{
	"https://i.imgur.com/dXCgbhf.jpeg",
	"https://i.imgur.com/lnRbvD9.gif",
	"https://i.imgur.com/slREgBu.jpeg",
	"https://i.imgur.com/BrQn0Je.gif",
	"https://i.imgur.com/JiyHuoN.jpeg",
	"https://i.imgur.com/O5mM2kS.gif",
	"https://i.imgur.com/ccMNJZp.gif",
	"https://i.imgur.com/Ngh3qbn.png",
	"https://i.imgur.com/x7N4krp.jpeg",
	"https://i.imgur.com/ENS8ygh.jpeg",
	"https://i.imgur.com/E3cJbZn.gif",
	"https://i.imgur.com/FtiJaP7.jpeg",
	"https://i.imgur.com/zYkVxwy.png",
	"https://i.imgur.com/vbJqU9C.png",
	"https://i.imgur.com/lqTBTPP.gif",
	"https://i.imgur.com/7BdWTRf.jpeg",
	"https://i.imgur.com/ujwrGAR.jpeg",
	"https://i.imgur.com/vjGQrBI.gif",
	"https://i.imgur.com/MkpU3JJ.jpeg",
	"https://i.imgur.com/QdJTA68.jpeg",
}

// Searcher finds an image for a token name. Giphy first, then a shorter
// Giphy query, then Imgur, then a stock fallback. Provider failures are
// logged and skipped, the searcher always returns something.
type Searcher struct {
	giphy     *GiphyClient
	imgur     *ImgurClient
	store     kv.Store
	logger    logging.Logger
	fallbacks []string
	pick      func(n int) int
}

func NewSearcher(giphy *GiphyClient, imgur *ImgurClient, store kv.Store, logger logging.Logger) *Searcher {
	return &Searcher{
		giphy:     giphy,
		imgur:     imgur,
		store:     store,
		logger:    logger,
		fallbacks: defaultFallbackImages,
		pick:      rand.Intn,
	}
}

// SetPicker overrides random candidate selection.
func (s *Searcher) SetPicker(pick func(n int) int) {
	s.pick = pick
}

// FindImage returns an image URL for the token name.
func (s *Searcher) FindImage(ctx context.Context, name string) string {
	if s.giphy != nil {
		if url := s.tryGiphy(ctx, name, 3); url != "" {
			return url
		}
		if len(name) > 4 {
			if url := s.tryGiphy(ctx, name[:4], 2); url != "" {
				return url
			}
		}
	}

	if s.imgur != nil {
		if url := s.tryImgur(ctx, name); url != "" {
			return url
		}
	}

	return s.fallbacks[s.pick(len(s.fallbacks))]
}

func (s *Searcher) tryGiphy(ctx context.Context, query string, limit int) string {
	urls, err := s.giphy.Search(ctx, query, limit)
	if err != nil {
		s.logger.WithError(err).WithField("query", query).Warn("Giphy search failed")
		return ""
	}
	return s.pickAllowed(ctx, urls)
}

func (s *Searcher) tryImgur(ctx context.Context, query string) string {
	urls, err := s.imgur.Search(ctx, query)
	if err != nil {
		s.logger.WithError(err).WithField("query", query).Warn("Imgur search failed")
		return ""
	}
	if len(urls) > 5 {
		urls = urls[:5]
	}
	return s.pickAllowed(ctx, urls)
}

// pickAllowed chooses a random candidate, skipping any URL that has been
// banned by a moderator.
func (s *Searcher) pickAllowed(ctx context.Context, urls []string) string {
	allowed := urls[:0:0]
	for _, u := range urls {
		if s.isBanned(ctx, u) {
			continue
		}
		allowed = append(allowed, u)
	}
	if len(allowed) == 0 {
		return ""
	}
	return allowed[s.pick(len(allowed))]
}

func (s *Searcher) isBanned(ctx context.Context, url string) bool {
	if s.store == nil {
		return false
	}
	_, banned, err := s.store.Get(ctx, bannedKeyPrefix+url)
	if err != nil {
		s.logger.WithError(err).Warn("Banned image check failed")
		return false
	}
	return banned
}
