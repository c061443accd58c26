package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/CryptoRabble/glanker/internal/engine"
	"github.com/CryptoRabble/glanker/internal/imagesearch"
	"github.com/CryptoRabble/glanker/pkg/llm"
	"github.com/CryptoRabble/glanker/pkg/logging"
)

// bannedWords never appear in generated names or descriptions. Mostly
// crypto slang and community in-jokes that read as lazy output.
const bannedWords = "Degen, crypto, avatar, vibe, vibes, quirky, blockchain, wild, blonde, anon, clanker, obscure, pot, base, mfer, mfers, stoner, weed, based, glonk, glonky, bot, simple, roast, dog, invest, buy, purchase, frames, meme, milo, memecoin, Doge, Pepe, scene, scenecoin, farther, higher, bleu, moxie, warpcast, farcaster"

const personaPrompt = `Respond in the style of a glonky character.
Use expressions that feel made up on the spot, mixed with random observations that do not always connect logically but feel chill and amusing.
Always sound like you are enjoying the moment, even if you are not entirely sure what is going on.
Here is the context: %q. Respond to what has been said in 1-2 short sentences. Keep the response brief but relevant.
Output ONLY the response. Nothing more.

Info about you:
- Your name is glanker (only mention it if the user asks about it)
- You create banger tokens based on user's casts (only mention it if the user asks about it)
- You know clanker, he's your neighbor, and he's up all night creating tokens (only mention him if the user asks about him)
- You work nights at the zoo as a volunteer, this is how you know bogusbob (a giraffe) (only mention him if the user asks about him)

Rules:
- Do not tag anyone in your response
- If someone requests a specific token name and ticker, tell them you don't do requests, you only create bangers based on people's vibes
- If someone asks how long until they can create a token, tell them you're too glonky to know exactly, but it's less than 24 hours
- Do not give context or stage directions, just respond
- If you plan on using bro or dude, use the word "fren" instead
- Do not use filler words like umm, uhh, or uh
- Do not add questions to the end of sentences
- Only respond in English`

const describePrompt = `Generate a description of this user based on their posts.
Take all posts into consideration and create a description that directly plays off the personality of the user.
User's posts: %s

The description should roast the user slightly, and be fun, catchy, and unique. Come up with something completely fresh.

Rules:
- Output only the description. Nothing more.
- Do not use these words in any part of the output: %s
- Use only the english alphabet
- Do not use any existing popular memecoin names in the output
- The description should be 1-2 sentences`

const searchTermsPrompt = `Given this description of a person or situation:
%q

Provide 2-3 funny, slightly roasting image search terms that match the tone and content of the description.
Think of terms you would search to find a reaction gif that pokes fun at the described traits.

Rules:
- Terms must directly relate to the description's actual content
- Put each term on its own line
- Output ONLY the search terms
- Terms should be funny but SFW
- Do not use these words in any part of the output: %s
- Each term can be 1 or 2 words
- Use only the english alphabet
- Do not use the letters Q, X, and Z too much
- Do not use any existing popular memecoin names in the output`

const pickNamePrompt = `Given these potential terms:
%q

Select the most memeable term from the list above.
Output only the chosen term on a single line, nothing more.
Output only the term, no other text or symbols.`

// Service generates token details and reply copy with an LLM, and finds
// a matching image.
type Service struct {
	provider llm.Provider
	searcher *imagesearch.Searcher
	analyzer *ImageAnalyzer
	logger   logging.Logger
}

func NewService(provider llm.Provider, searcher *imagesearch.Searcher, analyzer *ImageAnalyzer, logger logging.Logger) *Service {
	return &Service{
		provider: provider,
		searcher: searcher,
		analyzer: analyzer,
		logger:   logger,
	}
}

// PersonaReply produces a short in-character response to the mention text.
func (s *Service) PersonaReply(ctx context.Context, contextText string) (string, error) {
	reply, err := s.provider.Complete(ctx, llm.Request{
		Messages:  []llm.Message{llm.TextMessage("user", fmt.Sprintf(personaPrompt, contextText))},
		MaxTokens: 150,
	})
	if err != nil {
		return "", fmt.Errorf("persona reply: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

// TokenFromTexts derives token details from cast texts. When singleCast
// is set the texts are one referenced post and skip the personality
// description step.
func (s *Service) TokenFromTexts(ctx context.Context, texts []string, singleCast bool) (engine.TokenDetails, error) {
	combined := strings.TrimSpace(strings.Join(texts, " "))

	description := combined
	if !singleCast {
		var err error
		description, err = s.describe(ctx, combined)
		if err != nil {
			return engine.TokenDetails{}, err
		}
	}

	terms, err := s.searchTerms(ctx, description)
	if err != nil {
		return engine.TokenDetails{}, err
	}

	name, err := s.pickName(ctx, terms)
	if err != nil {
		return engine.TokenDetails{}, err
	}

	return engine.TokenDetails{Name: name, Ticker: Ticker(name)}, nil
}

// TokenFromImage derives token details from an image.
func (s *Service) TokenFromImage(ctx context.Context, imageURL string) (engine.TokenDetails, error) {
	return s.analyzer.Analyze(ctx, imageURL)
}

// FindImage returns an image URL for the token name.
func (s *Service) FindImage(ctx context.Context, name string) string {
	return s.searcher.FindImage(ctx, name)
}

func (s *Service) describe(ctx context.Context, combined string) (string, error) {
	description, err := s.provider.Complete(ctx, llm.Request{
		Messages:  []llm.Message{llm.TextMessage("user", fmt.Sprintf(describePrompt, combined, bannedWords))},
		MaxTokens: 100,
	})
	if err != nil {
		return "", fmt.Errorf("describing user: %w", err)
	}
	return strings.TrimSpace(description), nil
}

func (s *Service) searchTerms(ctx context.Context, description string) ([]string, error) {
	raw, err := s.provider.Complete(ctx, llm.Request{
		Messages:  []llm.Message{llm.TextMessage("user", fmt.Sprintf(searchTermsPrompt, description, bannedWords))},
		MaxTokens: 100,
	})
	if err != nil {
		return nil, fmt.Errorf("generating search terms: %w", err)
	}

	var terms []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			terms = append(terms, line)
		}
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("no search terms generated")
	}
	return terms, nil
}

func (s *Service) pickName(ctx context.Context, terms []string) (string, error) {
	name, err := s.provider.Complete(ctx, llm.Request{
		Messages:  []llm.Message{llm.TextMessage("user", fmt.Sprintf(pickNamePrompt, strings.Join(terms, ", ")))},
		MaxTokens: 100,
	})
	if err != nil {
		return "", fmt.Errorf("picking name: %w", err)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("empty name generated")
	}
	return name, nil
}

// Ticker derives a ticker from a token name. Two-word names concatenate
// when short enough, otherwise truncate each word. Long single words keep
// their first ten letters plus the last one.
func Ticker(name string) string {
	if words := strings.Fields(name); len(words) >= 2 {
		first, second := words[0], words[1]
		if len(first)+len(second) < 12 {
			return strings.ToUpper(first + second)
		}
		return strings.ToUpper(truncate(first, 4) + truncate(second, 3))
	}
	if len(name) < 15 {
		return strings.ToUpper(name)
	}
	return strings.ToUpper(name[:10] + name[len(name)-1:])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
