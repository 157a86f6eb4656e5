package chain

// Arbitrage executor ABI
const arbitrageABIJson = `[{
	"inputs": [{"internalType": "bytes", "name": "data", "type": "bytes"}],
	"name": "executeArbitrage",
	"outputs": [],
	"stateMutability": "nonpayable",
	"type": "function"
}]`

// Minimal ERC-20 ABI, shared by WETH and USDC
const erc20ABIJson = `[{
	"inputs": [
		{"internalType": "address", "name": "spender", "type": "address"},
		{"internalType": "uint256", "name": "amount", "type": "uint256"}
	],
	"name": "approve",
	"outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
	"stateMutability": "nonpayable",
	"type": "function"
}, {
	"inputs": [
		{"internalType": "address", "name": "owner", "type": "address"},
		{"internalType": "address", "name": "spender", "type": "address"}
	],
	"name": "allowance",
	"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
	"stateMutability": "view",
	"type": "function"
}, {
	"inputs": [{"internalType": "address", "name": "account", "type": "address"}],
	"name": "balanceOf",
	"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
	"stateMutability": "view",
	"type": "function"
}]`

const (
	methodExecuteArbitrage = "executeArbitrage"
	methodApprove          = "approve"
	methodAllowance        = "allowance"
	methodBalanceOf        = "balanceOf"
)
