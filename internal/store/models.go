package store

import "time"

type User struct {
	ID                    string
	Username              string
	Email                 string
	PasswordHash          string
	Role                  string
	IsAIPersona           bool
	PersonaPrompt         string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type Brand struct {
	ID          string
	Slug        string
	Name        string
	Tagline     string
	ColorScheme string // JSON object: primary/secondary/accent hex values
	Personality string
	Tier        int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Post struct {
	ID           string
	BrandID      string
	AuthorID     string
	AuthorName   string
	Title        string
	BodyMarkdown string
	BodyHTML     string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Comment struct {
	ID            string
	PostID        string
	AuthorID      string
	AuthorName    string
	Body          string
	IsAIGenerated bool
	CreatedAt     time.Time
}

type Subscriber struct {
	Email     string
	Confirmed bool
	CreatedAt time.Time
}

type Domain struct {
	ID        string
	Name      string
	BrandID   string
	Status    string
	Registrar string
	CreatedAt time.Time
}

// WordmapEntry is one keyword count for a domain. Entries are normalized
// rows so concurrent contributions increment counts atomically instead of
// rewriting a shared JSON blob.
type WordmapEntry struct {
	DomainID string
	Keyword  string
	Count    int
}

type Ownership struct {
	DomainID   string
	UserID     string
	Username   string
	Score      int
	Percent    float64
	ComputedAt time.Time
}

type TierUnlock struct {
	UserID     string
	BrandID    string
	UnlockedAt time.Time
}

// ActivityCounts feeds tier progression scoring.
type ActivityCounts struct {
	Posts         int
	Comments      int
	Contributions int
	Scans         int
}

type QRCode struct {
	ID        string
	Slug      string
	TargetURL string
	ImageKey  string
	CreatedBy string
	ScanCount int
	CreatedAt time.Time
}

// QRScan is one link in a QR code's scan chain. ChainHash commits to the
// previous entry, so the full chain can be re-verified from the first scan.
type QRScan struct {
	ID             int64
	QRID           string
	PreviousScanID *int64
	ChainHash      string
	IPHash         string
	UserAgent      string
	ScannedAt      time.Time
}

type Professional struct {
	ID         string
	UserID     string
	Trade      string
	City       string
	Bio        string
	IsVerified bool
	CreatedAt  time.Time
}

type SkillCertification struct {
	ID             string
	ProfessionalID string
	Skill          string
	IssuedBy       string
	IssuedAt       time.Time
	ExpiresAt      *time.Time
}

type LoyaltyAccount struct {
	UserID    string
	Balance   int
	UpdatedAt time.Time
}

type LoyaltyEntry struct {
	ID        int64
	UserID    string
	Delta     int
	Reason    string
	Reference string
	CreatedAt time.Time
}
