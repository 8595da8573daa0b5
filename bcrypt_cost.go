//go:build !race

package climb

func passwordHashCost() int {
	return DefaultPasswordCost
}
