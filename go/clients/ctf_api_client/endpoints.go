package ctf_api_client

const (
	// API Endpoints, formatted with game and challenge ids
	GameEndpoint            = "/api/game/%d"
	GameDetailsEndpoint     = "/api/game/%d/details"
	ChallengeEndpoint       = "/api/game/%d/challenges/%d"
	SubmissionEndpoint      = "/api/game/%d/challenges/%d/status/%d"
	ContainerEndpoint       = "/api/game/%d/container/%d"
	ContainerExtendEndpoint = "/api/game/%d/container/%d/extend"
	NoticesEndpoint         = "/api/game/%d/notices"
	ScoreboardEndpoint      = "/api/game/%d/scoreboard"
	UserHubEndpoint         = "/hub/user"

	// Headers
	AuthorizationHeader = "Authorization"
	CookieHeader        = "Cookie"

	// Query parameters
	GameQueryParam     = "game"
	GroupQueryParam    = "group"
	PageQueryParam     = "page"
	PageSizeQueryParam = "pageSize"
)
