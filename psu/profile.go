package psu

import (
	"strings"
	"sync"

	"github.com/arloliu/go-psu/scpi"
)

// Family tags a supported power supply device family.
type Family string

// Supported device families.
const (
	FamilySPE      Family = "SPE"
	FamilySPM      Family = "SPM"
	FamilyP4000    Family = "P4000"
	FamilyP3000    Family = "P3000"
	FamilyP2000    Family = "P2000"
	FamilyP1000    Family = "P1000"
	FamilyKiprimDC Family = "KIPRIM-DC"
	FamilyODP      Family = "ODP"
	FamilyODS      Family = "ODS"
)

// Profile describes a supported device family. The table of profiles is pure
// data: matching is case-insensitive substring containment against the
// "manufacturer,model" prefix of the identity reply, first match wins.
type Profile struct {
	// Match is the identity substring that selects this profile,
	// e.g. "OWON,SPE".
	Match string

	// Family is the device family tag.
	Family Family

	// BaudRate is the serial baud rate default for this family.
	BaudRate int

	// HasPowerQuery indicates whether the family answers MEAS:POW? directly.
	// Families without it get power computed as voltage times current.
	HasPowerQuery bool
}

// defaultProfiles is the static supported-device table. Registered profiles
// take precedence over these.
var defaultProfiles = []Profile{
	{Match: "OWON,SPE", Family: FamilySPE, BaudRate: DefaultBaudRate, HasPowerQuery: true},
	{Match: "OWON,SPM", Family: FamilySPM, BaudRate: DefaultBaudRate, HasPowerQuery: true},
	{Match: "OWON,P4", Family: FamilyP4000, BaudRate: DefaultBaudRate, HasPowerQuery: true},
	{Match: "OWON,P3", Family: FamilyP3000, BaudRate: DefaultBaudRate, HasPowerQuery: false},
	{Match: "OWON,P2", Family: FamilyP2000, BaudRate: DefaultBaudRate, HasPowerQuery: false},
	{Match: "OWON,P1", Family: FamilyP1000, BaudRate: DefaultBaudRate, HasPowerQuery: false},
	{Match: "KIPRIM,DC", Family: FamilyKiprimDC, BaudRate: DefaultBaudRate, HasPowerQuery: false},
	{Match: "OWON,ODP", Family: FamilyODP, BaudRate: DefaultBaudRate, HasPowerQuery: false},
	{Match: "OWON,ODS", Family: FamilyODS, BaudRate: DefaultBaudRate, HasPowerQuery: false},
}

var (
	profileMu          sync.RWMutex
	registeredProfiles []Profile
)

// RegisterProfile adds a profile to the supported-device table. Registered
// profiles are consulted before the built-in ones, so a registration can also
// override a built-in match.
//
// Undocumented families should not be assumed to behave like documented ones;
// registering a profile is the supported way to extend the table.
func RegisterProfile(p Profile) {
	profileMu.Lock()
	defer profileMu.Unlock()

	registeredProfiles = append(registeredProfiles, p)
}

// LookupProfile classifies a device identity against the supported-device
// table. It reports false if no entry matches.
func LookupProfile(id scpi.DeviceIdentity) (Profile, bool) {
	subject := strings.ToUpper(id.Manufacturer + "," + id.Model)

	profileMu.RLock()
	defer profileMu.RUnlock()

	for _, p := range registeredProfiles {
		if strings.Contains(subject, strings.ToUpper(p.Match)) {
			return p, true
		}
	}
	for _, p := range defaultProfiles {
		if strings.Contains(subject, strings.ToUpper(p.Match)) {
			return p, true
		}
	}

	return Profile{}, false
}
