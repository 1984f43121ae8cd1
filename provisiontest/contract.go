// Package provisiontest provides a contract test suite for provision.Supervisor
// implementations.
package provisiontest

// AllContracts returns all test cases for the contract test suite.
func AllContracts() []TestCase {
	const initialCapacity = 16

	contracts := make([]TestCase, 0, initialCapacity)

	contracts = append(contracts, coreContracts()...)
	contracts = append(contracts, lifecycleContracts()...)
	contracts = append(contracts, errorContracts()...)

	return contracts
}
