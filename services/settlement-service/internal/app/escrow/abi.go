package escrow

// Only the signatures the coordinator calls; the contracts themselves live elsewhere.
const escrowManagerABI = `[
{"type":"function","name":"registerEscrow","stateMutability":"nonpayable",
 "inputs":[{"name":"shipmentId","type":"uint256"},{"name":"supplier","type":"address"},{"name":"duration","type":"uint256"},{"name":"token","type":"address"}],
 "outputs":[]},
{"type":"function","name":"getEscrow","stateMutability":"view",
 "inputs":[{"name":"shipmentId","type":"uint256"}],
 "outputs":[{"name":"","type":"address"}]}
]`

const escrowABI = `[
{"type":"function","name":"getDepositedAmount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getLockedAmount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"lockFunds","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
{"type":"function","name":"releaseFunds","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]}
]`
