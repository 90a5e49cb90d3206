package prompt

import (
	"fmt"

	"tableflip.dev/wbc/pkg/eligibility"
)

// Candidates lets the user toggle rows of a preview until they confirm. It
// returns false when the user backs out without dispatching.
func (d *Driver) Candidates(set *eligibility.CandidateSet) (bool, error) {
	cursor := 0
	for {
		items := set.Items()
		choices := []Choice{
			{Label: "Dispatch", Detail: fmt.Sprintf("%d selected", len(set.SelectedIDs()))},
			{Label: "Select all"},
			{Label: "Clear selection"},
		}
		for _, c := range items {
			mark := "[ ] "
			if set.IsSelected(c.ID) {
				mark = "[x] "
			}
			choices = append(choices, Choice{
				Label:  mark + c.Label(),
				Detail: fmt.Sprintf("%s owes %s over %d months", c.Status, c.Balance.StringFixed(2), c.UnpaidMonths),
			})
		}
		choices = append(choices, Choice{Label: labelBack})

		i, err := d.Asker.Choose("Candidates", choices, cursor)
		if err != nil {
			return false, err
		}
		cursor = i
		switch {
		case i == 0:
			if set.CanProceed() {
				return true, nil
			}
			d.notice("select at least one connection")
		case i == 1:
			set.SelectAll()
		case i == 2:
			set.ClearSelection()
		case i == len(choices)-1:
			return false, nil
		default:
			if _, err := set.Toggle(items[i-3].ID); err != nil {
				return false, err
			}
		}
	}
}
