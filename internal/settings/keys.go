package settings

// Setting keys understood by the admin forms.
const (
	KeySiteName     = "site_name"
	KeySiteTheme    = "site_theme"
	KeyCacheExpires = "cache_expires"
	KeyQueueRefresh = "queue_refresh"

	KeyRPCURL    = "rpc_url"
	KeyRPCPort   = "rpc_port"
	KeyRPCToken  = "rpc_token"
	KeyRPCSecure = "rpc_secure"

	KeyImageExt   = "image"
	KeyVideoExt   = "video"
	KeyAudioExt   = "audio"
	KeyDocExt     = "doc"
	KeyCodeExt    = "code"
	KeyStreamExt  = "stream"
	KeyHidePath   = "hide_path"
	KeyEncryptDir = "encrypt_path"

	// keySecretSalt holds the PBKDF2 salt for encrypted values. Never exposed.
	keySecretSalt = "_secret_salt"

	// formToken is the CSRF field old form posts carry; it is not a setting.
	formToken = "_token"
)

// Form names a group of settings edited together.
type Form string

const (
	FormBasic Form = "basic"
	FormShow  Form = "show"
)

var formKeys = map[Form][]string{
	FormBasic: {
		KeySiteName, KeySiteTheme, KeyCacheExpires, KeyQueueRefresh,
		KeyRPCURL, KeyRPCPort, KeyRPCToken, KeyRPCSecure,
	},
	FormShow: {
		KeyImageExt, KeyVideoExt, KeyAudioExt, KeyDocExt, KeyCodeExt, KeyStreamExt,
		KeyHidePath, KeyEncryptDir,
	},
}

// Keys returns the keys that belong to form.
func (f Form) Keys() []string {
	return formKeys[f]
}

// Has reports whether key belongs to form.
func (f Form) Has(key string) bool {
	for _, k := range formKeys[f] {
		if k == key {
			return true
		}
	}
	return false
}

var secretKeys = map[string]bool{
	KeyRPCToken: true,
}

var daemonKeys = map[string]bool{
	KeyRPCURL:    true,
	KeyRPCPort:   true,
	KeyRPCToken:  true,
	KeyRPCSecure: true,
}
