package eval

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Case is one question with its reference answer.
type Case struct {
	Name     string `yaml:"name"`
	Question string `yaml:"question"`
	Expected string `yaml:"expected"`
}

// casesFile is the top-level shape of a cases YAML file:
//
//	cases:
//	  - name: monopoly_rules
//	    question: How much total money ...
//	    expected: $1500
type casesFile struct {
	Cases []Case `yaml:"cases"`
}

// DefaultCases are the regression questions run by `docrag eval` when no
// cases file is given. They assume the Monopoly and Ticket to Ride rule books
// have been ingested.
var DefaultCases = []Case{
	{
		Name:     "monopoly_rules",
		Question: "How much total money does a player start with in Monopoly? (Answer with the number only)",
		Expected: "$1500",
	},
	{
		Name:     "ticket_to_ride_rules",
		Question: "How many points does the longest continuous train get in Ticket to Ride? (Answer with the number only)",
		Expected: "10 points",
	},
}

// LoadCases reads cases from a YAML file. Every case needs a question and an
// expected answer; a missing name defaults to "case_<n>".
func LoadCases(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("eval: read cases %s: %w", path, err)
	}
	var f casesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("eval: parse cases %s: %w", path, err)
	}
	if len(f.Cases) == 0 {
		return nil, fmt.Errorf("eval: %s contains no cases", path)
	}
	for i := range f.Cases {
		c := &f.Cases[i]
		if c.Question == "" {
			return nil, fmt.Errorf("eval: case %d in %s has no question", i+1, path)
		}
		if c.Expected == "" {
			return nil, fmt.Errorf("eval: case %d in %s has no expected answer", i+1, path)
		}
		if c.Name == "" {
			c.Name = fmt.Sprintf("case_%d", i+1)
		}
	}
	return f.Cases, nil
}
