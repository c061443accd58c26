package farcaster

// WebhookEvent is the envelope Neynar posts to the webhook endpoint.
type WebhookEvent struct {
	Type string `json:"type"`
	Data Cast   `json:"data"`
}

// Cast is a single Farcaster post as delivered by the Neynar API.
type Cast struct {
	Hash              string  `json:"hash"`
	ThreadHash        string  `json:"thread_hash"`
	ParentHash        string  `json:"parent_hash"`
	ParentAuthor      *Ref    `json:"parent_author"`
	Author            User    `json:"author"`
	Text              string  `json:"text"`
	Timestamp         string  `json:"timestamp"`
	Embeds            []Embed `json:"embeds"`
	MentionedProfiles []User  `json:"mentioned_profiles"`
}

// Ref is a minimal user reference (parent_author carries only the FID).
type Ref struct {
	FID int64 `json:"fid"`
}

// User is a Farcaster account profile.
type User struct {
	FID               int64              `json:"fid"`
	Username          string             `json:"username"`
	DisplayName       string             `json:"display_name"`
	PfpURL            string             `json:"pfp_url"`
	CustodyAddress    string             `json:"custody_address"`
	VerifiedAddresses *VerifiedAddresses `json:"verified_addresses"`
	Experimental      *Experimental      `json:"experimental"`
}

// VerifiedAddresses lists the wallet addresses a user has verified.
type VerifiedAddresses struct {
	EthAddresses []string `json:"eth_addresses"`
}

// Experimental carries Neynar's experimental profile fields.
type Experimental struct {
	NeynarUserScore float64 `json:"neynar_user_score"`
}

// Score returns the user's quality score, or 0 when Neynar did not
// include one.
func (u *User) Score() float64 {
	if u == nil || u.Experimental == nil {
		return 0
	}
	return u.Experimental.NeynarUserScore
}

// PrimaryAddress returns the user's first verified ETH address, falling
// back to the custody address.
func (u *User) PrimaryAddress() string {
	if u == nil {
		return ""
	}
	if u.VerifiedAddresses != nil && len(u.VerifiedAddresses.EthAddresses) > 0 {
		return u.VerifiedAddresses.EthAddresses[0]
	}
	return u.CustodyAddress
}

// Embed is a URL attached to a cast, with optional fetched metadata.
type Embed struct {
	URL      string         `json:"url"`
	Metadata *EmbedMetadata `json:"metadata"`
}

// EmbedMetadata is the subset of Neynar's embed metadata we inspect.
type EmbedMetadata struct {
	ContentType string `json:"content_type"`
}
