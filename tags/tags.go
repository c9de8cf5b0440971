package tags

import "github.com/yohamta/donburi"

var (
	Projectile    = donburi.NewTag().SetName("Projectile")
	Predicted     = donburi.NewTag().SetName("Predicted")
	Authoritative = donburi.NewTag().SetName("Authoritative")
	Observer      = donburi.NewTag().SetName("Observer")
)
