package test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTestCases(t *testing.T) {
	paths, err := TestCasePaths()
	require.NoError(t, err, "failed to walk test cases dir")
	require.NotEmpty(t, paths)

	for _, path := range paths {
		testCase, err := LoadTestCase(path)
		require.NoError(t, err, "failed to load test case %s", path)

		assert.NotEmpty(t, testCase.Description, path)
		assert.Contains(t, []string{"boolean", "number"}, testCase.Kind, path)
		assert.NotNil(t, testCase.Sets, path)
		if testCase.Error == "" {
			assert.NotEmpty(t, testCase.Expect, path)
		} else {
			assert.NotEmpty(t, testCase.DIDs, path)
		}
	}
}
